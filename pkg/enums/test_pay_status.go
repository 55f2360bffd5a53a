package enums

// TestPayStatus tracks payment on an individual prescribed test line.
type TestPayStatus string

const (
	TestPayStatusUnpaid     TestPayStatus = "unpaid"
	TestPayStatusPaid       TestPayStatus = "paid"
	TestPayStatusCODPending TestPayStatus = "cod_pending"
	TestPayStatusRefunded   TestPayStatus = "refunded"
)

// String implements fmt.Stringer.
func (t TestPayStatus) String() string {
	return string(t)
}
