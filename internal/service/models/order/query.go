package order

// QueryOrdersModel represents filter parameters for querying orders.
type QueryOrdersModel struct {
	Ids    []int64 `json:"ids,omitempty"`
	Status string  `json:"status,omitempty"`
	Type   string  `json:"type,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
}
