package state

var (
	keySaleRecord       = []byte("sale/record")
	keyWhitelistEnabled = []byte("sale/whitelist/enabled")
	keyContributorIndex = []byte("sale/contrib/index")
	keyTokenSupply      = []byte("token/supply")
	keyGenesisApplied   = []byte("genesis/applied")

	prefixContribution = []byte("sale/contrib/addr/")
	prefixWhitelist    = []byte("sale/whitelist/party/")
	prefixAccount      = []byte("acct/")
)

func contributionKey(party [20]byte) []byte {
	return append(append([]byte{}, prefixContribution...), party[:]...)
}

func whitelistKey(party [20]byte) []byte {
	return append(append([]byte{}, prefixWhitelist...), party[:]...)
}

func accountKey(addr []byte) []byte {
	return append(append([]byte{}, prefixAccount...), addr...)
}
