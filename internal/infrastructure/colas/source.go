package colas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ColaMonitor/internal/domain"
	"ColaMonitor/internal/extract"
)

// FetchRecent acquires a session on the search form and submits a search for
// labels completed in the last daysBack days within the configured class range.
func (c *Client) FetchRecent(ctx context.Context, daysBack int) ([]domain.Label, error) {
	if daysBack < 1 {
		daysBack = 1
	}

	session, _, err := c.sessions.Acquire(ctx, c.SearchPageURL())
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	end := c.now().In(c.location)
	start := end.AddDate(0, 0, -daysBack)
	c.debug("searching registry",
		"from", start.Format(formDateLayout),
		"to", end.Format(formDateLayout),
		"hidden_fields", len(session.FormFields),
	)

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Cookie":  session.Cookie,
			"Referer": c.SearchPageURL(),
			"Origin":  c.origin(),
		}).
		SetFormData(c.searchForm(session, start, end)).
		Post(c.SearchResultsURL())
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("search request failed: status %d", res.StatusCode())
	}

	labels := extract.SearchResults(res.String())
	c.debug("search results parsed", "labels", len(labels))
	return labels, nil
}

func (c *Client) searchForm(session domain.Session, start, end time.Time) map[string]string {
	form := make(map[string]string, len(session.FormFields)+6)
	for name, value := range session.FormFields {
		form[name] = value
	}
	form["searchCriteria.dateCompletedFrom"] = start.Format(formDateLayout)
	form["searchCriteria.dateCompletedTo"] = end.Format(formDateLayout)
	form["searchCriteria.classTypeFrom"] = c.cfg.ClassTypeFrom
	form["searchCriteria.classTypeTo"] = c.cfg.ClassTypeTo
	form["searchCriteria.productOrFancifulName"] = ""
	form["searchCriteria.originCode"] = ""
	return form
}

// FetchImage returns the front-label image of a label, or nil when the proxy
// is not configured, the printable page cannot be rendered, it references no
// image, or the attachment is not an image.
func (c *Client) FetchImage(ctx context.Context, ttbID string) *domain.LabelImage {
	if c.sessions == nil || !c.sessions.Configured() {
		c.debug("no proxy token, skipping image fetch", "ttb_id", ttbID)
		return nil
	}

	printable := c.PrintableURL(ttbID)
	session, content, err := c.sessions.Acquire(ctx, printable)
	if err != nil {
		c.warn("printable page unavailable", "ttb_id", ttbID, "error", err)
		return nil
	}

	filenames := extract.ImageFilenames(content)
	if len(filenames) == 0 {
		c.debug("no images found", "ttb_id", ttbID)
		return nil
	}
	filename := filenames[0]

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Cookie":  session.Cookie,
			"Referer": printable,
		}).
		Get(c.AttachmentURL(filename))
	if err != nil {
		c.warn("image request failed", "ttb_id", ttbID, "error", err)
		return nil
	}
	if !res.IsSuccess() {
		c.warn("image request failed", "ttb_id", ttbID, "status", res.StatusCode())
		return nil
	}

	contentType := res.Header().Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		c.warn("attachment is not an image", "ttb_id", ttbID, "content_type", contentType)
		return nil
	}

	data := res.Body()
	c.debug("fetched image", "ttb_id", ttbID, "filename", filename, "bytes", len(data))
	return &domain.LabelImage{
		Data:        data,
		Filename:    filename,
		ContentType: contentType,
	}
}

// FetchDetail renders the public detail page and scrapes its labelled fields.
func (c *Client) FetchDetail(ctx context.Context, ttbID string) (domain.LabelDetail, error) {
	_, content, err := c.sessions.Acquire(ctx, c.DetailURL(ttbID))
	if err != nil {
		return domain.LabelDetail{}, fmt.Errorf("detail page %s: %w", ttbID, err)
	}
	return extract.Detail(ttbID, content), nil
}
