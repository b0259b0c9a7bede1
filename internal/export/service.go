package export

import (
	"context"
	"fmt"
	"html/template"

	"inkwell/api/internal/posts"
	"inkwell/api/internal/richtext"
)

// PostSource loads the post and its comments. Satisfied by *posts.Repo.
type PostSource interface {
	GetPost(ctx context.Context, id string) (posts.Post, error)
	ListComments(ctx context.Context, postID string) ([]posts.Comment, error)
}

// Service renders posts into downloadable files.
type Service struct {
	source PostSource
}

func NewService(source PostSource) *Service {
	return &Service{source: source}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	post, err := s.source.GetPost(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	content, err := richtext.Deserialize(post.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	data := TemplateData{
		Title:       post.Title,
		Category:    post.Category,
		Author:      post.AuthorID,
		PublishedAt: post.PublishedAt,
		ContentHTML: template.HTML(richtext.DisplayMarkup(content, 0)),
	}

	if req.IncludeComments {
		comments, err := s.source.ListComments(ctx, req.PostID)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		for _, c := range comments {
			data.Comments = append(data.Comments, TemplateComment{
				Author:    c.DisplayName,
				Body:      c.Body,
				CreatedAt: c.CreatedAt,
			})
		}
	}

	html, err := RenderPostHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, post.Title)
	case FormatDOCX:
		return exportDOCX(html, post.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
