package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrDriveDisabled is returned when no service account credentials are configured.
var ErrDriveDisabled = errors.New("google drive is not configured")

// ErrUnsupportedFile is returned for Drive files that are neither CSV nor a spreadsheet.
var ErrUnsupportedFile = errors.New("only csv, xlsx and google sheets files can be loaded")

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, ErrDriveDisabled
	}

	// Parse credentials from JSON
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

// Loadable reports whether the file can go through the dataset loader.
func (f *File) Loadable() bool {
	if f.MimeType == spreadsheetMimeType {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// LocalName is the name the loader sees. Google Sheets are exported as xlsx.
func (f *File) LocalName() string {
	if f.MimeType == spreadsheetMimeType && !strings.EqualFold(filepath.Ext(f.Name), ".xlsx") {
		return f.Name + ".xlsx"
	}
	return f.Name
}

func fromDrive(f *drive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
	}
}

// ListFiles returns the loadable files of a folder; "" means the drive root.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	files := make([]*File, 0)
	call := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		OrderBy("name")

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			file := fromDrive(f)
			if file.Loadable() {
				files = append(files, file)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}

	return files, nil
}

// GetFile fetches the metadata of a single file.
func (s *Service) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := s.srv.Files.Get(fileID).
		Fields("id, name, mimeType, modifiedTime, size").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get file %s: %w", fileID, err)
	}
	return fromDrive(f), nil
}

// DownloadFile streams the file content into w. Google Sheets are exported as xlsx.
func (s *Service) DownloadFile(ctx context.Context, file *File, w io.Writer) error {
	if !file.Loadable() {
		return fmt.Errorf("%s: %w", file.Name, ErrUnsupportedFile)
	}

	var (
		body io.ReadCloser
		err  error
	)
	if file.MimeType == spreadsheetMimeType {
		resp, exportErr := s.srv.Files.Export(file.ID, xlsxMimeType).Context(ctx).Download()
		if exportErr == nil {
			body = resp.Body
		}
		err = exportErr
	} else {
		resp, getErr := s.srv.Files.Get(file.ID).Context(ctx).Download()
		if getErr == nil {
			body = resp.Body
		}
		err = getErr
	}
	if err != nil {
		return fmt.Errorf("unable to download file %s: %w", file.Name, err)
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return fmt.Errorf("unable to read file %s: %w", file.Name, err)
	}
	log.Debug().Str("file_id", file.ID).Str("name", file.Name).Int64("bytes", n).Msg("drive file downloaded")
	return nil
}

// Fetch resolves a file ID and returns its loader name and content.
func (s *Service) Fetch(ctx context.Context, fileID string) (string, []byte, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	if err := s.DownloadFile(ctx, file, &buf); err != nil {
		return "", nil, err
	}
	return file.LocalName(), buf.Bytes(), nil
}

func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "root", nil
	}

	currentID := "root"
	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}

		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

func escapeQuery(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
