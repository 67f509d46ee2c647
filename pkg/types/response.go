package types

// SuccessEnvelope wraps every 2xx API payload.
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Page *PageInfo `json:"page,omitempty"`
}

// PageInfo carries the cursor for the next page of a listing.
type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	Count      int    `json:"count"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
