package types

// ContentKind discriminates the two kinds of spendable output content.
type ContentKind uint8

const (
	// ContentValue is an ordinary sidechain-spendable amount.
	ContentValue ContentKind = iota
	// ContentWithdrawal is spendable on the sidechain only by being swept
	// into a withdrawal bundle bound for the mainchain.
	ContentWithdrawal
)

// Content is a tagged union: Value(satoshis) or Withdrawal{value, main_fee,
// main_address}. main_address is stored unchecked; it is only parsed and
// validated when a withdrawal bundle is collected.
type Content struct {
	Kind        ContentKind `cbor:"1,keyasint"`
	Value       uint64      `cbor:"2,keyasint"`
	MainFee     uint64      `cbor:"3,keyasint"`
	MainAddress string      `cbor:"4,keyasint"`
}

// ValueContent builds a plain sidechain-spendable amount.
func ValueContent(value uint64) Content {
	return Content{Kind: ContentValue, Value: value}
}

// WithdrawalContent builds a withdrawal-bound amount.
func WithdrawalContent(value, mainFee uint64, mainAddress string) Content {
	return Content{Kind: ContentWithdrawal, Value: value, MainFee: mainFee, MainAddress: mainAddress}
}

func (c Content) IsValue() bool      { return c.Kind == ContentValue }
func (c Content) IsWithdrawal() bool { return c.Kind == ContentWithdrawal }

// GetValue returns the satoshi value carried by the content, regardless of
// kind.
func (c Content) GetValue() uint64 { return c.Value }
