package transport

// SnapshotSender sends encoded snapshot messages.
type SnapshotSender interface {
	SendSnapshot(data []byte) error
}

// SnapshotReceiver receives encoded snapshot messages.
type SnapshotReceiver interface {
	OnSnapshot(callback func(data []byte))
}
