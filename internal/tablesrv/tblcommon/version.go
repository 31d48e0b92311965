package tblcommon

const (
	ServerVersion = "0.1.0"
	ApiVersion    = "v1"
)
