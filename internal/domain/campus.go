package domain

// Campus представляет кампус - область видимости заявок и ревьюверов
type Campus struct {
	Code string `json:"code"`
}
