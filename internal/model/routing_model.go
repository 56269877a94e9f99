package model

// SimilarityResult is one hit of a similarity search. It is never persisted.
type SimilarityResult struct {
	Kind         EntityKind `json:"kind"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Similarity   float64    `json:"similarity"`
	DepartmentID *string    `json:"department_id,omitempty"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
}

// RoutingSuggestion is the advisory routing for a new ticket.
type RoutingSuggestion struct {
	DepartmentID    *string            `json:"department_id"`
	SubDepartmentID *string            `json:"sub_department_id"`
	AssigneeID      *string            `json:"assignee_id"`
	Confidence      float64            `json:"confidence"`
	Reason          string             `json:"reason"`
	RelatedTickets  []SimilarityResult `json:"related_tickets"`
	RelatedDocs     []SimilarityResult `json:"related_docs"`
}

// RelatedItems holds the raw search results for an existing ticket.
type RelatedItems struct {
	TicketID  string             `json:"ticket_id"`
	Tickets   []SimilarityResult `json:"tickets"`
	Documents []SimilarityResult `json:"documents"`
}
