package response

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// ListResponse carries a page of items and the number returned.
type ListResponse[T any] struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    []T  `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is the failure class when the error comes from an audit.
	Kind string `json:"kind,omitempty"`
}

func OK[T any](data T, message string) APIResponse[T] {
	return APIResponse[T]{Success: true, Message: message, Data: data}
}

func List[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Success: true, Count: len(items), Data: items}
}
