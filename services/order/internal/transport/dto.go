package transport

type CreateOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	UserID          string            `json:"user_id"`
	Items           []CreateOrderItem `json:"items"`
	Currency        string            `json:"currency"`
	ShippingAddress string            `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// PeerUser and PeerProduct are the slices of the peers' JSON we care about.
type PeerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type PeerProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}
