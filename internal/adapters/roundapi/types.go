package roundapi

// DTOs raw del feed. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// epochResponse es la respuesta de GET /epoch.
type epochResponse struct {
	Epoch  int64  `json:"epoch"`
	Paused bool   `json:"paused"`
	MinBet string `json:"min_bet"` // decimal en BNB, "" si desconocido
}

// roundResponse es la respuesta de GET /rounds/{epoch}.
// Precios como strings decimales ("30000.12"), tiempos en unix seconds.
type roundResponse struct {
	Epoch               int64   `json:"epoch"`
	LockPrice           string  `json:"lock_price"`
	ClosePrice          *string `json:"close_price"` // null mientras la ronda sigue abierta
	StartTimestamp      int64   `json:"start_timestamp"`
	LockTimestamp       int64   `json:"lock_timestamp"`
	CloseTimestamp      int64   `json:"close_timestamp"`
	TotalAmount         string  `json:"total_amount"`
	BullAmount          string  `json:"bull_amount"`
	BearAmount          string  `json:"bear_amount"`
	RewardBaseCalAmount string  `json:"reward_base_cal_amount"`
	RewardAmount        string  `json:"reward_amount"`
}
