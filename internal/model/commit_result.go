package model

// CommitResult is the immutable outcome of one commit attempt. The invariant
// Total == Inserted + DuplicatesSkipped + Errors always holds.
type CommitResult struct {
	Total             int `json:"total"`
	Inserted          int `json:"inserted"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	Errors            int `json:"errors"`
}
