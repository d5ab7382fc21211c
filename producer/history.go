package producer

// Len returns the number of recorded transactions.
func (l *Ledger) Len() int { return len(l.Transactions) }

// Full reports whether the history has reached its capacity.
func (l *Ledger) Full() bool { return len(l.Transactions) >= l.Capacity }

// Remaining returns how many more transactions the ledger accepts.
func (l *Ledger) Remaining() int {
	if n := l.Capacity - len(l.Transactions); n > 0 {
		return n
	}
	return 0
}

// History returns a copy of the transactions in the order they were recorded.
func (l *Ledger) History() []Transaction {
	out := make([]Transaction, len(l.Transactions))
	copy(out, l.Transactions)
	return out
}

// Totals sums the history by kind. For a ledger that has never been rejected
// mid-write these equal StoredAmount and ConsumedAmount.
func (l *Ledger) Totals() (stored, consumed uint64) {
	for _, tx := range l.Transactions {
		switch tx.Kind {
		case KindStore:
			stored += tx.Amount
		case KindConsume:
			consumed += tx.Amount
		}
	}
	return stored, consumed
}
