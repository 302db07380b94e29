package mail

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap"
)

// Search finds the messages received between start and end. IMAP SINCE and
// BEFORE only carry date granularity, so the result is a superset of the
// window that Fetch narrows down to the exact instant.
func (c *Client) Search(start, end time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	// BEFORE excludes the named day, push it one past the end.
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	criteria.Before = endDay.AddDate(0, 0, 1)

	uids, err := c.imap.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("mailbox search failed: %w", err)
	}

	c.logger.Debug("mailbox search",
		"matched", len(uids),
		"since", criteria.Since.Format("2006-01-02"),
		"before", criteria.Before.Format("2006-01-02"))
	return uids, nil
}

// Fetch loads envelope and structure for the given messages in small
// batches and drops everything delivered before the exact cutoff.
func (c *Client) Fetch(uids []uint32, since time.Time) ([]Message, error) {
	var out []Message

	for i := 0; i < len(uids); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids[i:end]...)

		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)
		go func() {
			done <- c.imap.UidFetch(seqset, []imap.FetchItem{
				imap.FetchEnvelope,
				imap.FetchBodyStructure,
				imap.FetchInternalDate,
			}, messages)
		}()

		for msg := range messages {
			m := newMessage(msg)
			if !since.IsZero() && m.InternalDate.Before(since) {
				c.logger.Debug("message before cutoff", "uid", m.UID, "delivered", m.InternalDate)
				continue
			}
			out = append(out, m)
		}

		if err := <-done; err != nil {
			return nil, fmt.Errorf("message fetch failed: %w", err)
		}
	}
	return out, nil
}

func newMessage(msg *imap.Message) Message {
	m := Message{UID: msg.Uid, InternalDate: msg.InternalDate}
	if msg.Envelope != nil {
		m.Subject = msg.Envelope.Subject
		m.MessageID = msg.Envelope.MessageId
		if !msg.Envelope.Date.IsZero() {
			m.Date = msg.Envelope.Date.Format(time.RFC1123Z)
		}
		if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
			m.From = msg.Envelope.From[0].Address()
		}
	}
	if msg.BodyStructure != nil {
		m.Attachments = findAttachments(msg.BodyStructure, nil)
	}
	return m
}
