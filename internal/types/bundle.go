package types

// WithdrawalBundleStatus reflects what the mainchain reported about a
// previously broadcast withdrawal bundle.
type WithdrawalBundleStatus uint8

const (
	WithdrawalBundleFailed WithdrawalBundleStatus = iota
	WithdrawalBundleConfirmed
)

// WithdrawalBundle is a single mainchain transaction sweeping every withdrawal
// UTXO it spends to their respective mainchain destinations. At most one may
// be pending at a time.
type WithdrawalBundle struct {
	SpentUtxos  map[OutPoint]Output `cbor:"1,keyasint"`
	Transaction MainTx              `cbor:"2,keyasint"`
}

// Txid is the mainchain transaction id of the bundle's sweep transaction.
func (b WithdrawalBundle) Txid() MainTxid {
	return b.Transaction.Txid()
}

// Deposit is a mainchain deposit exactly as read off the mainchain: the
// destination address is an unchecked string, since the mainchain imposes
// no rule that it decode to a valid sidechain Address.
type Deposit struct {
	Address string
	Value   uint64
}

// TwoWayPegData is a slice of mainchain history relevant to the sidechain:
// new deposits, the mainchain block hash those deposits were current as of,
// and the settled status of any previously broadcast withdrawal bundles.
type TwoWayPegData struct {
	Deposits         map[OutPoint]Deposit
	DepositBlockHash *MainBlockHash
	BundleStatuses   map[MainTxid]WithdrawalBundleStatus
}
