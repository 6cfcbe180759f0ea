package rls

var (
	ResetHook         = resetHook
	ChainAfterRelease = chainAfterRelease
)
