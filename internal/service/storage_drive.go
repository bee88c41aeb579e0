package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/util"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveStorageProvider Google Drive 存储，使用长期 refresh token 换取访问令牌。
// 对象的 key 为 Drive 文件 ID。
type DriveStorageProvider struct {
	Config  *config.StorageConfig
	Service *drive.Service
}

func NewDriveStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*DriveStorageProvider, error) {
	if cfg.DriveClientID == "" || cfg.DriveClientSecret == "" || cfg.DriveRefreshToken == "" {
		return nil, errors.New("drive storage requires client id, client secret and refresh token")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.DriveClientID,
		ClientSecret: cfg.DriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.DriveRefreshToken})

	srv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &DriveStorageProvider{Config: cfg, Service: srv}, nil
}

func (p *DriveStorageProvider) Name() string {
	return util.StorageDrive
}

// Put 上传后授予任何人只读权限，并取回查看/下载链接
func (p *DriveStorageProvider) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (*StoredObject, error) {
	meta := &drive.File{Name: name}
	if p.Config.DriveParentFolder != "" {
		meta.Parents = []string{p.Config.DriveParentFolder}
	}

	created, err := p.Service.Files.Create(meta).
		Media(reader, googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	_, err = p.Service.Permissions.Create(created.Id, &drive.Permission{Role: "reader", Type: "anyone"}).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	file, err := p.Service.Files.Get(created.Id).
		Fields("webViewLink, webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	return &StoredObject{
		Key:         created.Id,
		ViewURL:     file.WebViewLink,
		DownloadURL: file.WebContentLink,
	}, nil
}

func (p *DriveStorageProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := p.Service.Files.Get(key).Context(ctx).Download()
	if err != nil {
		if isDriveNotFound(err) {
			return nil, util.ErrObjectNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

func (p *DriveStorageProvider) Delete(ctx context.Context, key string) error {
	err := p.Service.Files.Delete(key).Context(ctx).Do()
	if err != nil && isDriveNotFound(err) {
		return util.ErrObjectNotFound
	}
	return err
}

func isDriveNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
