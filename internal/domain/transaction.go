package domain

// TxStatus is the status of a transaction as reported by the transaction manager.
type TxStatus int

const (
	TxStatusActive TxStatus = iota
	TxStatusMarkedRollback
	TxStatusPrepared
	TxStatusCommitted
	TxStatusRolledBack
	TxStatusUnknown
	TxStatusNoTransaction
	TxStatusPreparing
	TxStatusCommitting
	TxStatusRollingBack
)

var txStatusNames = map[TxStatus]string{
	TxStatusActive:         "active",
	TxStatusMarkedRollback: "marked-rollback",
	TxStatusPrepared:       "prepared",
	TxStatusCommitted:      "committed",
	TxStatusRolledBack:     "rolled-back",
	TxStatusUnknown:        "unknown",
	TxStatusNoTransaction:  "no-transaction",
	TxStatusPreparing:      "preparing",
	TxStatusCommitting:     "committing",
	TxStatusRollingBack:    "rolling-back",
}

// String implements fmt.Stringer.
func (s TxStatus) String() string {
	if name, ok := txStatusNames[s]; ok {
		return name
	}

	return "unknown"
}
