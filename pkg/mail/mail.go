// Package mail pulls invoice attachments out of an IMAP mailbox. It only
// ever reads: processed state lives in the local store, not in mailbox
// flags.
package mail

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/charmbracelet/log"
)

const fetchBatchSize = 10

type Options struct {
	Server   string
	Port     string
	Username string
	Password string
	Mailbox  string
}

func (o Options) address() string {
	port := o.Port
	if port == "" {
		port = "993"
	}
	return o.Server + ":" + port
}

type Client struct {
	imap   *client.Client
	logger *log.Logger
}

// Attachment is one downloadable part of a message, addressed by its MIME
// section path.
type Attachment struct {
	Filename string
	Section  string
}

// Message is the envelope level view the pipeline works with.
type Message struct {
	UID          uint32
	MessageID    string
	Subject      string
	From         string
	Date         string
	InternalDate time.Time
	Attachments  []Attachment
}

// Connect dials the server over TLS, logs in and selects the mailbox read
// only.
func Connect(opts Options, logger *log.Logger) (*Client, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("imap server not configured")
	}

	tlsConfig := &tls.Config{ServerName: opts.Server}
	c, err := client.DialTLS(opts.address(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.address(), err)
	}

	if err := c.Login(opts.Username, opts.Password); err != nil {
		c.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", opts.Username, err)
	}

	mailbox := opts.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
	}

	logger.Info("connected to mailbox", "server", opts.Server, "user", opts.Username, "mailbox", mailbox)
	return &Client{imap: c, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.imap.Logout()
}
