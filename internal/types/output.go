package types

// GetValue is implemented by anything that carries a satoshi value.
type GetValue interface {
	GetValue() uint64
}

// GetAddress is implemented by anything bound to a sidechain Address.
type GetAddress interface {
	GetAddress() Address
}

// Output is a single spendable element of a Transaction or coinbase.
type Output struct {
	Address Address `cbor:"1,keyasint"`
	Content Content `cbor:"2,keyasint"`
}

func (o Output) GetValue() uint64 { return o.Content.GetValue() }
