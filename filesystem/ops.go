package filesystem

// Op enumerates every operation the confined filesystem forwards
type Op int

const (
	OpOpen Op = iota
	OpReadFile
	OpOpenFile
	OpWriteFile
	OpMkdir
	OpMkdirAll
	OpSymlink
	OpLink
	OpExists
	OpAccess
	OpLstat
	OpStat
	OpReadDir
	OpRemove
	OpRmdir
	OpRename
	OpReadlink
	OpRealpath
	OpWatch
)

// accessClass decides which condition a filtered path fails with
type accessClass int

const (
	readClass  accessClass = iota // filtered = not found
	writeClass                    // filtered = not permitted
)

// rewriteKind is how a path-valued result is translated back for the client
type rewriteKind int

const (
	rewriteNone    rewriteKind = iota
	rewriteListing             // each entry re-checked against the filter
	rewriteTarget              // absolute results confined, then made client-relative
	rewriteChange              // reported paths confined, filtered, made client-relative
)

type opSpec struct {
	name    string
	class   accessClass
	rewrite rewriteKind
}

var ops = [...]opSpec{
	OpOpen:      {"open", readClass, rewriteNone},
	OpReadFile:  {"readfile", readClass, rewriteNone},
	OpOpenFile:  {"openfile", writeClass, rewriteNone},
	OpWriteFile: {"writefile", writeClass, rewriteNone},
	OpMkdir:     {"mkdir", writeClass, rewriteNone},
	OpMkdirAll:  {"mkdirall", writeClass, rewriteNone},
	OpSymlink:   {"symlink", writeClass, rewriteNone},
	OpLink:      {"link", writeClass, rewriteNone},
	OpExists:    {"exists", readClass, rewriteNone},
	OpAccess:    {"access", readClass, rewriteNone},
	OpLstat:     {"lstat", readClass, rewriteNone},
	OpStat:      {"stat", readClass, rewriteNone},
	OpReadDir:   {"readdir", readClass, rewriteListing},
	OpRemove:    {"remove", writeClass, rewriteNone},
	OpRmdir:     {"rmdir", writeClass, rewriteNone},
	OpRename:    {"rename", writeClass, rewriteNone},
	OpReadlink:  {"readlink", readClass, rewriteTarget},
	OpRealpath:  {"realpath", readClass, rewriteTarget},
	OpWatch:     {"watch", readClass, rewriteChange},
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(ops) {
		return "unknown"
	}
	return ops[op].name
}

// Ops lists every forwarded operation in declaration order
func Ops() []Op {
	all := make([]Op, len(ops))
	for i := range ops {
		all[i] = Op(i)
	}
	return all
}

// Mutates reports whether op writes to or restructures the tree
func (op Op) Mutates() bool {
	return ops[op].class == writeClass
}
