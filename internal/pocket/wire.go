package pocket

import (
	"encoding/json"
	"errors"
	"fmt"
)

var itemRequired = []string{
	"item_id", "resolved_id", "given_url", "resolved_url", "given_title", "resolved_title",
	"favorite", "status", "excerpt", "is_article", "has_image", "has_video", "word_count",
	"time_added", "time_updated", "time_read", "time_favorited", "sort_id", "is_index", "lang",
	"listen_duration_estimate",
}

var modifiedItemRequired = []string{
	"item_id", "resolved_id", "resolved_url", "excerpt", "is_article", "has_image", "has_video",
	"word_count",
}

type itemWire struct {
	ItemID                 string              `json:"item_id"`
	ResolvedID             string              `json:"resolved_id"`
	GivenURL               string              `json:"given_url"`
	ResolvedURL            string              `json:"resolved_url"`
	GivenTitle             string              `json:"given_title"`
	ResolvedTitle          string              `json:"resolved_title"`
	Favorite               FavoriteStatus      `json:"favorite"`
	Status                 Status              `json:"status"`
	Excerpt                string              `json:"excerpt"`
	IsArticle              wireBool            `json:"is_article"`
	HasImage               HasImage            `json:"has_image"`
	HasVideo               HasVideo            `json:"has_video"`
	WordCount              wireUint            `json:"word_count"`
	TimeAdded              wireUint            `json:"time_added"`
	TimeUpdated            wireUint            `json:"time_updated"`
	TimeRead               wireUint            `json:"time_read"`
	TimeFavorited          wireUint            `json:"time_favorited"`
	SortID                 uint32              `json:"sort_id"`
	IsIndex                wireBool            `json:"is_index"`
	Lang                   string              `json:"lang"`
	ListenDurationEstimate uint64              `json:"listen_duration_estimate"`
	TopImageURL            *string             `json:"top_image_url,omitempty"`
	DomainMetadata         *DomainMetadata     `json:"domain_metadata,omitempty"`
	TimeToRead             *uint64             `json:"time_to_read,omitempty"`
	AmpURL                 *string             `json:"amp_url,omitempty"`
	Images                 *wireMap[imageWire] `json:"images,omitempty"`
	Videos                 *wireMap[videoWire] `json:"videos,omitempty"`
	Authors                *wireMap[Author]    `json:"authors,omitempty"`
	Tags                   *wireMap[Tag]       `json:"tags,omitempty"`
	Image                  *mainImageWire      `json:"image,omitempty"`
}

type imageWire struct {
	ItemID  string   `json:"item_id"`
	ImageID string   `json:"image_id"`
	Src     string   `json:"src"`
	Width   wireUint `json:"width"`
	Height  wireUint `json:"height"`
	Credit  string   `json:"credit"`
	Caption string   `json:"caption"`
}

type mainImageWire struct {
	ItemID string   `json:"item_id"`
	Src    string   `json:"src"`
	Width  wireUint `json:"width"`
	Height wireUint `json:"height"`
}

type videoWire struct {
	ItemID  string    `json:"item_id"`
	VideoID string    `json:"video_id"`
	Src     string    `json:"src"`
	Width   wireUint  `json:"width"`
	Height  wireUint  `json:"height"`
	Type    wireUint  `json:"type"`
	Vid     string    `json:"vid"`
	Length  *wireUint `json:"length,omitempty"`
}

type modifiedItemWire struct {
	ItemID         string          `json:"item_id"`
	ResolvedID     string          `json:"resolved_id"`
	GivenURL       *string         `json:"given_url"`
	ResolvedURL    string          `json:"resolved_url"`
	Excerpt        string          `json:"excerpt"`
	IsArticle      wireBool        `json:"is_article"`
	HasImage       HasImage        `json:"has_image"`
	HasVideo       HasVideo        `json:"has_video"`
	WordCount      wireUint        `json:"word_count"`
	Lang           *string         `json:"lang"`
	DomainMetadata *DomainMetadata `json:"domain_metadata,omitempty"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	w := itemWire{
		ItemID:                 i.ItemID,
		ResolvedID:             i.ResolvedID,
		GivenURL:               i.GivenURL,
		ResolvedURL:            i.ResolvedURL,
		GivenTitle:             i.GivenTitle,
		ResolvedTitle:          i.ResolvedTitle,
		Favorite:               i.Favorite,
		Status:                 i.Status,
		Excerpt:                i.Excerpt,
		IsArticle:              wireBool(i.IsArticle),
		HasImage:               i.HasImage,
		HasVideo:               i.HasVideo,
		WordCount:              wireUint(i.WordCount),
		TimeAdded:              wireUint(i.TimeAdded),
		TimeUpdated:            wireUint(i.TimeUpdated),
		TimeRead:               wireUint(i.TimeRead),
		TimeFavorited:          wireUint(i.TimeFavorited),
		SortID:                 i.SortID,
		IsIndex:                wireBool(i.IsIndex),
		Lang:                   i.Lang,
		ListenDurationEstimate: i.ListenDurationEstimate,
		TopImageURL:            i.TopImageURL,
		DomainMetadata:         i.DomainMetadata,
		TimeToRead:             i.TimeToRead,
		AmpURL:                 i.AmpURL,
	}
	if i.Authors != nil {
		authors := wireMap[Author](i.Authors)
		w.Authors = &authors
	}
	if i.Tags != nil {
		tags := wireMap[Tag](i.Tags)
		w.Tags = &tags
	}
	if i.Images != nil {
		images := make(wireMap[imageWire], len(i.Images))
		w.Images = &images
		for k, img := range i.Images {
			images[k] = imageWire{
				ItemID: img.ItemID, ImageID: img.ImageID, Src: img.Src,
				Width: wireUint(img.Width), Height: wireUint(img.Height),
				Credit: img.Credit, Caption: img.Caption,
			}
		}
	}
	if i.Videos != nil {
		videos := make(wireMap[videoWire], len(i.Videos))
		w.Videos = &videos
		for k, v := range i.Videos {
			vw := videoWire{
				ItemID: v.ItemID, VideoID: v.VideoID, Src: v.Src,
				Width: wireUint(v.Width), Height: wireUint(v.Height),
				Type: wireUint(v.Type), Vid: v.Vid,
			}
			if v.Length != nil {
				l := wireUint(*v.Length)
				vw.Length = &l
			}
			videos[k] = vw
		}
	}
	if i.Image != nil {
		w.Image = &mainImageWire{
			ItemID: i.Image.ItemID, Src: i.Image.Src,
			Width: wireUint(i.Image.Width), Height: wireUint(i.Image.Height),
		}
	}
	return json.Marshal(w)
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := decodeStrict(data, &w, itemRequired...); err != nil {
		return fmt.Errorf("item: %w", err)
	}
	*i = Item{
		ItemID:                 w.ItemID,
		ResolvedID:             w.ResolvedID,
		GivenURL:               w.GivenURL,
		ResolvedURL:            w.ResolvedURL,
		GivenTitle:             w.GivenTitle,
		ResolvedTitle:          w.ResolvedTitle,
		Favorite:               w.Favorite,
		Status:                 w.Status,
		Excerpt:                w.Excerpt,
		IsArticle:              bool(w.IsArticle),
		HasImage:               w.HasImage,
		HasVideo:               w.HasVideo,
		WordCount:              uint64(w.WordCount),
		TimeAdded:              uint64(w.TimeAdded),
		TimeUpdated:            uint64(w.TimeUpdated),
		TimeRead:               uint64(w.TimeRead),
		TimeFavorited:          uint64(w.TimeFavorited),
		SortID:                 w.SortID,
		IsIndex:                bool(w.IsIndex),
		Lang:                   w.Lang,
		ListenDurationEstimate: w.ListenDurationEstimate,
		TopImageURL:            w.TopImageURL,
		DomainMetadata:         w.DomainMetadata,
		TimeToRead:             w.TimeToRead,
		AmpURL:                 w.AmpURL,
	}
	if w.Authors != nil {
		i.Authors = *w.Authors
	}
	if w.Tags != nil {
		i.Tags = *w.Tags
	}
	if w.Images != nil {
		i.Images = make(map[string]Image, len(*w.Images))
		for k, img := range *w.Images {
			i.Images[k] = Image{
				ItemID: img.ItemID, ImageID: img.ImageID, Src: img.Src,
				Width: uint32(img.Width), Height: uint32(img.Height),
				Credit: img.Credit, Caption: img.Caption,
			}
		}
	}
	if w.Videos != nil {
		i.Videos = make(map[string]Video, len(*w.Videos))
		for k, v := range *w.Videos {
			video := Video{
				ItemID: v.ItemID, VideoID: v.VideoID, Src: v.Src,
				Width: uint32(v.Width), Height: uint32(v.Height),
				Type: uint32(v.Type), Vid: v.Vid,
			}
			if v.Length != nil {
				l := uint32(*v.Length)
				video.Length = &l
			}
			i.Videos[k] = video
		}
	}
	if w.Image != nil {
		i.Image = &MainImage{
			ItemID: w.Image.ItemID, Src: w.Image.Src,
			Width: uint32(w.Image.Width), Height: uint32(w.Image.Height),
		}
	}
	return nil
}

func (m ModifiedItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(modifiedItemWire{
		ItemID:         m.ItemID,
		ResolvedID:     m.ResolvedID,
		GivenURL:       m.GivenURL,
		ResolvedURL:    m.ResolvedURL,
		Excerpt:        m.Excerpt,
		IsArticle:      wireBool(m.IsArticle),
		HasImage:       m.HasImage,
		HasVideo:       m.HasVideo,
		WordCount:      wireUint(m.WordCount),
		Lang:           m.Lang,
		DomainMetadata: m.DomainMetadata,
	})
}

func (m *ModifiedItem) UnmarshalJSON(data []byte) error {
	var w modifiedItemWire
	if err := decodeStrict(data, &w, modifiedItemRequired...); err != nil {
		return fmt.Errorf("modified item: %w", err)
	}
	*m = ModifiedItem{
		ItemID:         w.ItemID,
		ResolvedID:     w.ResolvedID,
		GivenURL:       w.GivenURL,
		ResolvedURL:    w.ResolvedURL,
		Excerpt:        w.Excerpt,
		IsArticle:      bool(w.IsArticle),
		HasImage:       w.HasImage,
		HasVideo:       w.HasVideo,
		WordCount:      uint64(w.WordCount),
		Lang:           w.Lang,
		DomainMetadata: w.DomainMetadata,
	}
	return nil
}

func (d *DeletedItem) UnmarshalJSON(data []byte) error {
	var w struct {
		ItemID string `json:"item_id"`
	}
	if err := decodeStrict(data, &w, "item_id"); err != nil {
		return fmt.Errorf("deleted item: %w", err)
	}
	d.ItemID = w.ItemID
	return nil
}

// MarshalJSON renders a deleted item the way Pocket sends it.
func (d DeletedItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ItemID string `json:"item_id"`
		Status Status `json:"status"`
	}{d.ItemID, ShouldBeDeleted})
}

func (e Entry) MarshalJSON() ([]byte, error) {
	switch {
	case e.Item != nil:
		return json.Marshal(e.Item)
	case e.Deleted != nil:
		return json.Marshal(e.Deleted)
	}
	return nil, errors.New("entry has neither item nor deleted item")
}

// UnmarshalJSON tries the full Item shape first and falls back to
// DeletedItem when item fields are missing. The upstream API has no
// discriminant field. A complete item with a malformed field is an error.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var item Item
	itemErr := json.Unmarshal(data, &item)
	if itemErr == nil {
		*e = Entry{Item: &item}
		return nil
	}
	var missing *missingFieldError
	if !errors.As(itemErr, &missing) {
		return itemErr
	}
	var deleted DeletedItem
	if err := json.Unmarshal(data, &deleted); err != nil {
		return fmt.Errorf("entry matches neither item nor deleted item: %w", itemErr)
	}
	*e = Entry{Deleted: &deleted}
	return nil
}
