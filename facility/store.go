package facility

// ListOpts filters and pages facility listings.
type ListOpts struct {
	Owner  string
	Limit  int
	Offset int
}
