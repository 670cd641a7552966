package constants

// Operation ties a job type to the NSQ topic its worker consumes.
type Operation struct {
	Name     string
	NSQTopic string
}

var Operations = []Operation{
	{
		Name:     OpArchive,
		NSQTopic: TopicArchive,
	},
	{
		Name:     OpSyncMetadata,
		NSQTopic: TopicMetadata,
	},
}

// TopicFor returns the NSQ topic for the named operation,
// or an empty string if the operation is unknown.
func TopicFor(opName string) string {
	for _, op := range Operations {
		if op.Name == opName {
			return op.NSQTopic
		}
	}
	return ""
}
