// Package imap implements the imap_reader tool (§4.3): read-only access
// to an IMAP mailbox for discovery, search and selective content fetch.
// It is grounded on the two-phase discovery-then-fetch workflow described
// by the original imap_email agent (search/fetch_headers narrow down
// which messages are worth the bandwidth of a full fetch_email).
package imap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/nocodo/manager/internal/tools"
)

// Credentials are injected by the caller (the Agent Execution Loop, once
// authorization has resolved which mailbox a session may use) rather than
// accepted as tool arguments, so a model can never supply its own IMAP
// password through a tool call.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Config controls the imap_reader tool's connection and fetch limits.
type Config struct {
	Credentials  Credentials
	DialTimeout  time.Duration
	MaxUIDsPerOp int
}

// Handler implements the imap_reader tool's five read-only operations:
// list_mailboxes, mailbox_status, search, fetch_headers, fetch_email.
type Handler struct {
	creds       Credentials
	dialTimeout time.Duration
	maxUIDs     int
}

const defaultMaxUIDsPerOp = 200

// NewHandler builds an imap_reader handler from cfg.
func NewHandler(cfg Config) *Handler {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	max := cfg.MaxUIDsPerOp
	if max <= 0 {
		max = defaultMaxUIDsPerOp
	}
	return &Handler{creds: cfg.Credentials, dialTimeout: timeout, maxUIDs: max}
}

type readerArgs struct {
	Operation string     `json:"operation"`
	Mailbox   string     `json:"mailbox"`
	UIDs      []uint32   `json:"uids"`
	Criteria  searchArgs `json:"criteria"`
	Limit     int        `json:"limit"`
}

type searchArgs struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	SinceDate  string `json:"since_date"`
	BeforeDate string `json:"before_date"`
	UnseenOnly bool   `json:"unseen_only"`
	RawQuery   string `json:"raw_query"`
}

func (h *Handler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var args readerArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tools.Result{Err: fmt.Errorf("invalid arguments: %w", err)}
	}

	c, err := h.dial()
	if err != nil {
		return tools.Result{Err: err}
	}
	defer c.Logout()

	switch args.Operation {
	case "list_mailboxes":
		return h.listMailboxes(c)
	case "mailbox_status":
		return h.mailboxStatus(c, args.Mailbox)
	case "search":
		return h.search(c, args.Mailbox, args.Criteria, args.Limit)
	case "fetch_headers":
		return h.fetchHeaders(c, args.Mailbox, args.UIDs)
	case "fetch_email":
		return h.fetchEmail(c, args.Mailbox, args.UIDs)
	default:
		return tools.Result{Err: fmt.Errorf("imap_reader: unknown operation %q", args.Operation)}
	}
}

func (h *Handler) dial() (*client.Client, error) {
	addr := net.JoinHostPort(h.creds.Host, strconv.Itoa(port(h.creds.Port)))
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap_reader: connect: %w", err)
	}
	c.Timeout = h.dialTimeout
	if err := c.Login(h.creds.Username, h.creds.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("imap_reader: login: %w", err)
	}
	return c, nil
}

func port(p int) int {
	if p <= 0 {
		return 993
	}
	return p
}

type mailboxEntry struct {
	Name       string   `json:"name"`
	Delimiter  string   `json:"delimiter"`
	Attributes []string `json:"attributes"`
}

func (h *Handler) listMailboxes(c *client.Client) tools.Result {
	mailboxes := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() { done <- c.List("", "*", mailboxes) }()

	var entries []mailboxEntry
	for m := range mailboxes {
		attrs := make([]string, 0, len(m.Attributes))
		for _, a := range m.Attributes {
			attrs = append(attrs, string(a))
		}
		entries = append(entries, mailboxEntry{Name: m.Name, Delimiter: m.Delimiter, Attributes: attrs})
	}
	if err := <-done; err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: list mailboxes: %w", err)}
	}
	return jsonResult(map[string]any{"mailboxes": entries})
}

func (h *Handler) mailboxStatus(c *client.Client, mailbox string) tools.Result {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	status, err := c.Status(mailbox, []imap.StatusItem{
		imap.StatusMessages, imap.StatusUnseen, imap.StatusRecent, imap.StatusUidNext,
	})
	if err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: mailbox status: %w", err)}
	}
	return jsonResult(map[string]any{
		"mailbox":  mailbox,
		"messages": status.Messages,
		"unseen":   status.Unseen,
		"recent":   status.Recent,
		"uid_next": status.UidNext,
	})
}

func (h *Handler) search(c *client.Client, mailbox string, criteria searchArgs, limit int) tools.Result {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: select mailbox: %w", err)}
	}

	sc := imap.NewSearchCriteria()
	if criteria.From != "" {
		sc.Header.Add("From", criteria.From)
	}
	if criteria.To != "" {
		sc.Header.Add("To", criteria.To)
	}
	if criteria.Subject != "" {
		sc.Header.Add("Subject", criteria.Subject)
	}
	if criteria.UnseenOnly {
		sc.WithoutFlags = append(sc.WithoutFlags, imap.SeenFlag)
	}
	if criteria.SinceDate != "" {
		t, err := time.Parse("02-Jan-2006", criteria.SinceDate)
		if err != nil {
			return tools.Result{Err: fmt.Errorf("imap_reader: invalid since_date: %w", err)}
		}
		sc.Since = t
	}
	if criteria.BeforeDate != "" {
		t, err := time.Parse("02-Jan-2006", criteria.BeforeDate)
		if err != nil {
			return tools.Result{Err: fmt.Errorf("imap_reader: invalid before_date: %w", err)}
		}
		sc.Before = t
	}

	uids, err := c.UidSearch(sc)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: search: %w", err)}
	}

	max := limit
	if max <= 0 || max > h.maxUIDs {
		max = h.maxUIDs
	}
	truncated := false
	if len(uids) > max {
		uids = uids[:max]
		truncated = true
	}
	return jsonResult(map[string]any{"uids": uids, "count": len(uids), "truncated": truncated})
}

type headerEntry struct {
	UID     uint32   `json:"uid"`
	Subject string   `json:"subject"`
	From    []string `json:"from"`
	To      []string `json:"to"`
	Date    string   `json:"date"`
	Size    uint32   `json:"size"`
	Flags   []string `json:"flags"`
}

func (h *Handler) fetchHeaders(c *client.Client, mailbox string, uids []uint32) tools.Result {
	if len(uids) == 0 {
		return tools.Result{Err: fmt.Errorf("imap_reader: uids is required")}
	}
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: select mailbox: %w", err)}
	}

	uids = capUIDs(uids, h.maxUIDs)
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchRFC822Size, imap.FetchUid}
	go func() { done <- c.UidFetch(seqset, items, messages) }()

	var entries []headerEntry
	for m := range messages {
		entries = append(entries, envelopeToHeader(m))
	}
	if err := <-done; err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: fetch headers: %w", err)}
	}
	return jsonResult(map[string]any{"headers": entries})
}

func envelopeToHeader(m *imap.Message) headerEntry {
	entry := headerEntry{UID: m.Uid, Size: m.Size}
	for _, f := range m.Flags {
		entry.Flags = append(entry.Flags, f)
	}
	if m.Envelope != nil {
		entry.Subject = m.Envelope.Subject
		entry.Date = m.Envelope.Date.Format(time.RFC3339)
		entry.From = addressList(m.Envelope.From)
		entry.To = addressList(m.Envelope.To)
	}
	return entry
}

func addressList(addrs []*imap.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address())
	}
	return out
}

type emailEntry struct {
	UID     uint32 `json:"uid"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *Handler) fetchEmail(c *client.Client, mailbox string, uids []uint32) tools.Result {
	if len(uids) == 0 {
		return tools.Result{Err: fmt.Errorf("imap_reader: uids is required")}
	}
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: select mailbox: %w", err)}
	}

	uids = capUIDs(uids, h.maxUIDs)
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, items, messages) }()

	var entries []emailEntry
	for m := range messages {
		entry := emailEntry{UID: m.Uid}
		if m.Envelope != nil {
			entry.Subject = m.Envelope.Subject
		}
		if body := m.GetBody(section); body != nil {
			buf := make([]byte, 0, 4096)
			chunk := make([]byte, 4096)
			for {
				n, err := body.Read(chunk)
				if n > 0 {
					buf = append(buf, chunk[:n]...)
				}
				if err != nil {
					break
				}
			}
			entry.Body = string(buf)
		}
		entries = append(entries, entry)
	}
	if err := <-done; err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: fetch email: %w", err)}
	}
	return jsonResult(map[string]any{"emails": entries})
}

func capUIDs(uids []uint32, max int) []uint32 {
	if max > 0 && len(uids) > max {
		return uids[:max]
	}
	return uids
}

func jsonResult(v any) tools.Result {
	payload, err := json.Marshal(v)
	if err != nil {
		return tools.Result{Err: fmt.Errorf("imap_reader: encode result: %w", err)}
	}
	return tools.Result{Payload: payload}
}
