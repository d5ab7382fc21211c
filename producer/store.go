package producer

// ListOpts pages the ledgers of one facility.
type ListOpts struct {
	Limit  int
	Offset int
}
