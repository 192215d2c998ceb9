package metrics

type contextKey string

func (c contextKey) String() string {
	return "archiverContextKey" + string(c)
}

var RetriesKey = contextKey("ArchiverDownloadRetries")
