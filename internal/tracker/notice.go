package tracker

// Variant styles a notice
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a transient user-facing notification
type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}
