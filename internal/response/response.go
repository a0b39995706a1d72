package response

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Операция успешно выполнена"`
}

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: QUEUE_FULL
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Очередь заполнена
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	// example: invalid status transition waiting -> serving
	Details string `json:"details,omitempty"`
}

// PageResponse - страница списка с общим количеством элементов.
type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page" example:"1"`
	Limit int   `json:"limit" example:"20"`
	Total int64 `json:"total" example:"42"`
}

// HealthResponse - ответ /health.
type HealthResponse struct {
	Status   string            `json:"status" example:"ok"`
	Services map[string]string `json:"services,omitempty"`
}
