package config

// MountOptions holds the FUSE mount settings.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug      bool   // fuse protocol debug logs
	FsName     string // source column in mount tables
	Name       string // fs type suffix, i.e. fuse.<Name>
	AllowOther bool   // let users other than the mounter access the mount
}
