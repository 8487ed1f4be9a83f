package models

// DataLossToken acknowledges that an operation destroys stored data.
// The only way to get one is AllowDataLoss.
type DataLossToken interface {
	dataLoss()
}

type dataLossToken struct{}

func (dataLossToken) dataLoss() {}

// AllowDataLoss grants permission to run a destructive operation
func AllowDataLoss() DataLossToken {
	return dataLossToken{}
}
