package library

import "time"

// SetNowFunc swaps the service clock out; tests must restore time.Now.
func SetNowFunc(fn func() time.Time) { nowFunc = fn }
