package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/mailview/internal/core"
	"github.com/mikey/mailview/internal/utils"
	"go.uber.org/zap"
)

// localFolder is the folder name reported for every file
const localFolder = "local"

// ErrInvalidID is returned for IDs that would escape the source directory
var ErrInvalidID = errors.New("invalid email id")

// Source serves emails stored as files in one directory. Files ending in
// .eml are parsed as MIME messages, anything else is treated as HTML.
type Source struct {
	dir    string
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewSource creates a file-backed content source
func NewSource(dir string, text *utils.TextProcessor, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}
	return &Source{
		dir:    dir,
		text:   text,
		logger: logger,
	}
}

// GetEmail loads <dir>/<id>. The folder is ignored. Only files ListEmails
// would return are served: hidden files, directories and symlinks are not
// found.
func (s *Source) GetEmail(ctx context.Context, id string, folder string) (*core.Email, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if !listable(id) {
		return nil, core.ErrEmailNotFound
	}

	info, err := os.Lstat(filepath.Join(s.dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", id, err)
	}
	if !info.Mode().IsRegular() {
		return nil, core.ErrEmailNotFound
	}

	email, err := s.load(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrEmailNotFound
	}
	return email, err
}

// ListEmails loads every regular file in the directory, sorted by name
func (s *Source) ListEmails(ctx context.Context, folder string) (*core.EmailList, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read email directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && listable(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	list := &core.EmailList{Emails: make([]*core.Email, 0, len(names))}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		email, err := s.load(name)
		if err != nil {
			s.logger.Warn("Skipping unreadable email file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		list.Emails = append(list.Emails, email)
	}
	list.FolderCounts = map[string]int{localFolder: len(list.Emails)}
	return list, nil
}

func (s *Source) load(id string) (*core.Email, error) {
	path := filepath.Join(s.dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	email := &core.Email{
		ID:     id,
		Folder: localFolder,
		Size:   int64(len(data)),
		Read:   true,
	}
	if info, err := os.Stat(path); err == nil {
		email.Date = info.ModTime().UTC()
	}

	if strings.EqualFold(filepath.Ext(id), ".eml") {
		msg, err := ParseMessage(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		email.Sender = msg.Sender
		email.Recipient = msg.Recipient
		email.Subject = msg.Subject
		email.Content = msg.Body
		email.ContentType = msg.ContentType
		if !msg.Date.IsZero() {
			email.Date = msg.Date
		}
		return email, nil
	}

	content, err := s.text.DecodeHTML(data, "")
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}
	email.Content = content
	email.ContentType = "html"
	email.Subject = strings.TrimSuffix(id, filepath.Ext(id))
	return email, nil
}

func listable(name string) bool {
	return !strings.HasPrefix(name, ".")
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) ||
		!filepath.IsLocal(id) {
		return fmt.Errorf("%w: %w: %q", core.ErrInvalidRequest, ErrInvalidID, id)
	}
	return nil
}
