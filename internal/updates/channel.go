package updates

// Channel pairs the live broadcast with the durable history.
// Publish may silently lose an event; Record never does while the
// history window holds it. Mutation code is expected to call both
// with the same payload so a late subscriber can always catch up.
type Channel struct {
	bus *Bus
	log *Log
}

// NewChannel wires a bus and a log into one channel.
func NewChannel(bus *Bus, log *Log) *Channel {
	return &Channel{bus: bus, log: log}
}

// Publish fans the event out to live subscribers. Fire-and-forget.
func (c *Channel) Publish(researchID string, e Event) {
	e.ResearchID = researchID
	c.bus.Publish(e)
}

// Record appends the event to the task's durable history.
func (c *Channel) Record(researchID string, e Event) error {
	e.ResearchID = researchID
	return c.log.Append(researchID, e)
}

// History returns the task's retained events, oldest first.
func (c *Channel) History(researchID string) ([]Event, error) {
	return c.log.History(researchID)
}

// Subscribe attaches a live listener. The caller must Unsubscribe.
func (c *Channel) Subscribe() chan Event {
	return c.bus.Subscribe()
}

// Unsubscribe detaches a live listener and closes its channel.
func (c *Channel) Unsubscribe(ch chan Event) {
	c.bus.Unsubscribe(ch)
}
