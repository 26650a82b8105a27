package storage

// RecordStore covers every record the services read or create directly. Balance
// fields only change through SettlementStore.
type RecordStore interface {
	WalletStore
	LedgerReader
	TransactionStore
	BatchStore
}

// Storage is the full data layer a backend must provide. The ledger, the settlement
// service and the payout processor each take the narrower interface they need.
type Storage interface {
	RecordStore
	SettlementStore
}
