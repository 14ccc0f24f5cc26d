package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/tmartens/keepsake/internal/errors"
)

// gdriveBackend stores objects in Google Drive via the OAuth2 API.
// Drive has no real path hierarchy, so the slash-separated remote path
// becomes the file name, optionally inside a fixed parent folder.
//
// Options:
//   - client_id (required)
//   - client_secret (required)
//   - refresh_token (required): obtained once through the OAuth consent flow
//   - folder_id: parent folder for all uploads
type gdriveBackend struct {
	svc      *drive.Service
	folderID string
}

// OpenGoogleDrive opens a Google Drive backend.
func OpenGoogleDrive(ctx context.Context, opts Options) (Backend, error) {
	if err := opts.Require("client_id", "client_secret", "refresh_token"); err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     opts["client_id"],
		ClientSecret: opts["client_secret"],
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	token := &oauth2.Token{RefreshToken: opts["refresh_token"]}

	svc, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, token)))
	if err != nil {
		return nil, errors.Transfer(err, "creating drive service")
	}

	return &gdriveBackend{svc: svc, folderID: opts.Get("folder_id", "")}, nil
}

// find returns the Drive file whose name equals the remote path, or nil.
func (b *gdriveBackend) find(ctx context.Context, remotePath string) (*drive.File, error) {
	name := strings.ReplaceAll(cleanRemote(remotePath), "'", "\\'")
	q := "name = '" + name + "' and trashed = false"
	if b.folderID != "" {
		q += " and '" + b.folderID + "' in parents"
	}

	list, err := b.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return nil, errors.Transfer(err, "querying for %s", remotePath)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

func (b *gdriveBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", localPath)
	}
	defer f.Close()

	existing, err := b.find(ctx, remotePath)
	if err != nil {
		return err
	}

	if existing != nil {
		_, err = b.svc.Files.Update(existing.Id, &drive.File{}).Media(f).Context(ctx).Do()
		return errors.Transfer(err, "replacing %s", remotePath)
	}

	meta := &drive.File{Name: cleanRemote(remotePath)}
	if b.folderID != "" {
		meta.Parents = []string{b.folderID}
	}
	_, err = b.svc.Files.Create(meta).Media(f).Context(ctx).Do()
	return errors.Transfer(err, "uploading %s", remotePath)
}

func (b *gdriveBackend) Download(ctx context.Context, remotePath, localPath string) error {
	file, err := b.find(ctx, remotePath)
	if err != nil {
		return err
	}
	if file == nil {
		return errors.NotFound("object %s does not exist", remotePath)
	}

	resp, err := b.svc.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Transfer(err, "creating local directory for %s", localPath)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", localPath)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return errors.Transfer(err, "downloading %s", remotePath)
	}
	return out.Close()
}

func (b *gdriveBackend) Exists(ctx context.Context, remotePath string) (bool, error) {
	file, err := b.find(ctx, remotePath)
	if err != nil {
		return false, err
	}
	return file != nil, nil
}

func (b *gdriveBackend) Delete(ctx context.Context, remotePath string) error {
	file, err := b.find(ctx, remotePath)
	if err != nil {
		return err
	}
	if file == nil {
		return nil
	}
	if err := b.svc.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
		return errors.Transfer(err, "deleting %s", remotePath)
	}
	return nil
}

func (b *gdriveBackend) SupportsSharing() bool { return true }

func (b *gdriveBackend) ShareLink(ctx context.Context, remotePath string, expiry time.Duration) (string, error) {
	file, err := b.find(ctx, remotePath)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", errors.NotFound("object %s does not exist", remotePath)
	}

	perm := &drive.Permission{
		Type:           "anyone",
		Role:           "reader",
		ExpirationTime: time.Now().Add(expiry).UTC().Format(time.RFC3339),
	}
	if _, err := b.svc.Permissions.Create(file.Id, perm).Context(ctx).Do(); err != nil {
		return "", errors.Transfer(err, "sharing %s", remotePath)
	}

	shared, err := b.svc.Files.Get(file.Id).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return "", errors.Transfer(err, "resolving link for %s", remotePath)
	}
	return shared.WebViewLink, nil
}

func (b *gdriveBackend) Name() string { return "gdrive" }

func (b *gdriveBackend) Close() error { return nil }
