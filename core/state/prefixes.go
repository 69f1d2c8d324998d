package state

var (
	contractInfoKey = []byte("contract/info")

	lendingConfigKey      = []byte("lending/config")
	lendingPoolKey        = []byte("lending/pool")
	lendingLenderPrefix   = []byte("lending/lender/")
	lendingBorrowerPrefix = []byte("lending/borrower/")

	bankBalancePrefix = []byte("bank/balance/")
	bankDenomsPrefix  = []byte("bank/denoms/")
	bankSupplyPrefix  = []byte("bank/supply/")
	bankLockPrefix    = []byte("bank/lock/")
	bankLockIndex     = []byte("bank/locks/")
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}
