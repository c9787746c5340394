package pocket

import "fmt"

// itemJSON renders a complete-detail item as Pocket sends it.
func itemJSON(id, givenURL string) string {
	return fmt.Sprintf(`{
		"item_id": %[1]q,
		"resolved_id": %[1]q,
		"given_url": %[2]q,
		"given_title": "Given title",
		"favorite": "0",
		"status": "0",
		"time_added": "1473631286",
		"time_updated": "1473631290",
		"time_read": "0",
		"time_favorited": "0",
		"sort_id": 3,
		"resolved_title": "Resolved title",
		"resolved_url": %[2]q,
		"excerpt": "An excerpt.",
		"is_article": "1",
		"is_index": "0",
		"has_video": "1",
		"has_image": "1",
		"word_count": "3197",
		"lang": "en",
		"listen_duration_estimate": 1238,
		"top_image_url": "https://example.com/top.jpg",
		"time_to_read": 14,
		"domain_metadata": {"name": "Example", "logo": "https://example.com/logo.png", "greyscale_logo": "https://example.com/grey.png"},
		"images": {"1": {"item_id": %[1]q, "image_id": "1", "src": "https://example.com/a.jpg", "width": "0", "height": "0", "credit": "Getty", "caption": ""}},
		"videos": {"1": {"item_id": %[1]q, "video_id": "1", "src": "https://www.youtube.com/v/Er34PbFkVGk", "width": "420", "height": "315", "type": "1", "vid": "Er34PbFkVGk", "length": "93"}},
		"authors": {"57": {"item_id": %[1]q, "author_id": "57", "name": "Bill Barnwell", "url": "https://example.com/bill"}},
		"tags": [],
		"image": {"item_id": %[1]q, "src": "https://example.com/a.jpg", "width": "640", "height": "480"}
	}`, id, givenURL)
}

// simpleItemJSON renders an item as returned by a simple-detail query.
func simpleItemJSON(id, givenURL, status, favorite string) string {
	return fmt.Sprintf(`{
		"item_id": %[1]q, "resolved_id": %[1]q, "given_url": %[2]q, "given_title": "",
		"favorite": %[4]q, "status": %[3]q, "time_added": "100", "time_updated": "100",
		"time_read": "0", "time_favorited": "0", "sort_id": 0, "resolved_title": "",
		"resolved_url": "", "excerpt": "", "is_article": "0", "is_index": "0",
		"has_video": "0", "has_image": "0", "word_count": "0", "lang": "",
		"listen_duration_estimate": 0
	}`, id, givenURL, status, favorite)
}

const modifiedItemJSON = `{
	"item_id": "2878954297",
	"normal_url": "http://example.com/new",
	"resolved_id": "2878954297",
	"extended_item_id": "2878954297",
	"resolved_url": "https://example.com/new",
	"domain_id": "85964",
	"origin_domain_id": "85964",
	"response_code": "200",
	"mime_type": "text/html",
	"content_length": "7204",
	"encoding": "utf-8",
	"date_resolved": "2020-02-07 01:22:15",
	"date_published": "0000-00-00 00:00:00",
	"title": "New page",
	"excerpt": "Fresh.",
	"word_count": "42",
	"innerdomain_redirect": "0",
	"login_required": "0",
	"has_image": "0",
	"has_video": "0",
	"is_index": "0",
	"is_article": "1",
	"used_fallback": "0",
	"lang": "en",
	"given_url": "http://example.com/new"
}`
