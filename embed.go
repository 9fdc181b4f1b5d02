package meridian

import (
	"encoding/json"
	"fmt"
	"time"
)

// EmbedVariant is the closed set of embed kinds a post may carry. Indexing
// dispatches on the concrete type rather than probing properties.
type EmbedVariant interface {
	embedKind() string
}

type EmbedImage struct {
	ImageCid string `json:"imageCid"`
	Alt      string `json:"alt,omitempty"`
}

type EmbedImages struct {
	Images []EmbedImage `json:"images"`
}

type EmbedExternal struct {
	URI         string `json:"uri"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ThumbCid    string `json:"thumbCid,omitempty"`
}

type EmbedRecord struct {
	Record StrongRef `json:"record"`
}

type EmbedVideo struct {
	VideoCid string `json:"videoCid"`
	Alt      string `json:"alt,omitempty"`
}

type EmbedRecordWithMedia struct {
	Record EmbedRecord `json:"record"`
	Media  Embed       `json:"media"`
}

func (EmbedImages) embedKind() string          { return "images" }
func (EmbedExternal) embedKind() string        { return "external" }
func (EmbedRecord) embedKind() string          { return "record" }
func (EmbedVideo) embedKind() string           { return "video" }
func (EmbedRecordWithMedia) embedKind() string { return "recordWithMedia" }

// Embed wraps an EmbedVariant for JSON transport. The wire form carries a
// "kind" discriminator next to the variant's own fields.
type Embed struct {
	Value EmbedVariant
}

func (e Embed) MarshalJSON() ([]byte, error) {
	if e.Value == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(e.Value)
	if err != nil {
		return nil, err
	}
	kind, err := json.Marshal(e.Value.embedKind())
	if err != nil {
		return nil, err
	}
	if string(body) == "{}" {
		return []byte(fmt.Sprintf(`{"kind":%s}`, kind)), nil
	}
	return []byte(fmt.Sprintf(`{"kind":%s,%s`, kind, body[1:])), nil
}

func (e *Embed) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Value = nil
		return nil
	}
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case "images":
		var v EmbedImages
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Value = v
	case "external":
		var v EmbedExternal
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Value = v
	case "record":
		var v EmbedRecord
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Value = v
	case "video":
		var v EmbedVideo
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Value = v
	case "recordWithMedia":
		var v EmbedRecordWithMedia
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Value = v
	default:
		return fmt.Errorf("unknown embed kind %q", probe.Kind)
	}
	return nil
}

// Flatten splits a composite record+media embed into its parts so callers
// can treat every post as carrying a flat list of simple embeds.
func (e *Embed) Flatten() []EmbedVariant {
	if e == nil || e.Value == nil {
		return nil
	}
	if rwm, ok := e.Value.(EmbedRecordWithMedia); ok {
		out := []EmbedVariant{rwm.Record}
		out = append(out, rwm.Media.Flatten()...)
		return out
	}
	return []EmbedVariant{e.Value}
}

// ThreadgateRule is the closed set of reply-gate allow rules.
type ThreadgateRule interface {
	ruleKind() string
}

// RuleMention allows replies from actors mentioned in the root post.
type RuleMention struct{}

// RuleFollower allows replies from actors who follow the root author.
type RuleFollower struct{}

// RuleFollowing allows replies from actors the root author follows.
type RuleFollowing struct{}

// RuleList allows replies from members of a list.
type RuleList struct {
	List string `json:"list"`
}

func (RuleMention) ruleKind() string   { return "mention" }
func (RuleFollower) ruleKind() string  { return "follower" }
func (RuleFollowing) ruleKind() string { return "following" }
func (RuleList) ruleKind() string      { return "list" }

type threadgateRuleWire struct {
	Kind string `json:"kind"`
	List string `json:"list,omitempty"`
}

func MarshalThreadgateRules(rules []ThreadgateRule) ([]byte, error) {
	wire := make([]threadgateRuleWire, 0, len(rules))
	for _, r := range rules {
		w := threadgateRuleWire{Kind: r.ruleKind()}
		if lr, ok := r.(RuleList); ok {
			w.List = lr.List
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

func UnmarshalThreadgateRules(data []byte) ([]ThreadgateRule, error) {
	var wire []threadgateRuleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	rules := make([]ThreadgateRule, 0, len(wire))
	for _, w := range wire {
		switch w.Kind {
		case "mention":
			rules = append(rules, RuleMention{})
		case "follower":
			rules = append(rules, RuleFollower{})
		case "following":
			rules = append(rules, RuleFollowing{})
		case "list":
			rules = append(rules, RuleList{List: w.List})
		default:
			return nil, fmt.Errorf("unknown threadgate rule kind %q", w.Kind)
		}
	}
	return rules, nil
}

func (t *ThreadgateRecord) UnmarshalJSON(data []byte) error {
	type alias struct {
		Post          string          `json:"post"`
		Allow         json.RawMessage `json:"allow"`
		HiddenReplies []string        `json:"hiddenReplies"`
		CreatedAt     time.Time       `json:"createdAt"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	t.Post = a.Post
	t.HiddenReplies = a.HiddenReplies
	t.CreatedAt = a.CreatedAt
	t.Allow = nil
	if len(a.Allow) > 0 && string(a.Allow) != "null" {
		rules, err := UnmarshalThreadgateRules(a.Allow)
		if err != nil {
			return err
		}
		if rules == nil {
			rules = []ThreadgateRule{}
		}
		t.Allow = rules
	}
	return nil
}

func (t ThreadgateRecord) MarshalJSON() ([]byte, error) {
	type alias struct {
		Post          string          `json:"post"`
		Allow         json.RawMessage `json:"allow,omitempty"`
		HiddenReplies []string        `json:"hiddenReplies,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
	}
	a := alias{
		Post:          t.Post,
		HiddenReplies: t.HiddenReplies,
		CreatedAt:     t.CreatedAt,
	}
	if t.Allow != nil {
		raw, err := MarshalThreadgateRules(t.Allow)
		if err != nil {
			return nil, err
		}
		a.Allow = raw
	}
	return json.Marshal(a)
}
