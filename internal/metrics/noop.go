package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

func (n *NoopCollector) ConnectionOpened(protocol string)          {}
func (n *NoopCollector) ConnectionClosed(protocol string)          {}
func (n *NoopCollector) TLSConnectionEstablished(protocol string)  {}
func (n *NoopCollector) AuthAttempt(protocol, authDomain string, success bool) {}
func (n *NoopCollector) CommandProcessed(protocol, command string) {}

func (n *NoopCollector) MessageRetrieved(protocol, userDomain string, sizeBytes int64) {}
func (n *NoopCollector) MessageStored(protocol, userDomain string, sizeBytes int64)    {}
func (n *NoopCollector) MessageDeleted(protocol, userDomain string)                    {}
func (n *NoopCollector) MessageListed(protocol, userDomain string)                     {}

func (n *NoopCollector) IdleSessionStarted() {}
func (n *NoopCollector) IdleSessionEnded()   {}

func (n *NoopCollector) WatcherEvent(kind string) {}
