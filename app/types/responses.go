package types

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SubmitFortuneResponse struct {
	Message   string `json:"message"`
	FortuneID string `json:"fortuneId"`
	Status    string `json:"status"`
}

type PredictionResponse struct {
	Message    string `json:"message,omitempty"`
	FortuneID  string `json:"fortuneId,omitempty"`
	Prediction string `json:"prediction"`
}

type FortuneStatusResponse struct {
	Status     string `json:"status"`
	Prediction string `json:"prediction,omitempty"`
}

type Fortune struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"ownerId"`
	Images      []string `json:"images"`
	SubjectName string   `json:"name"`
	SubjectAge  string   `json:"age"`
	Intent      string   `json:"intent"`
	About       string   `json:"about,omitempty"`
	Prediction  string   `json:"prediction"`
	Status      string   `json:"status"`
	PaymentID   string   `json:"paymentId,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

type ListFortunesResponse struct {
	Fortunes []*Fortune `json:"fortunes"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PaymentID    string `json:"paymentId"`
	Amount       int64  `json:"amount"`
}

type PriceResponse struct {
	Amount int64 `json:"amount"`
}

type SessionStatusResponse struct {
	Status string `json:"status"`
}

type SendReadingResponse struct {
	Message string `json:"message"`
	EmailID string `json:"emailId"`
}
