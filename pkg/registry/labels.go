package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
)

const (
	KeywordMinLength  = 3
	reservedLabelName = "flagged"
)

var keywordRegex = regexp.MustCompile(`^[\p{L}\p{N}_][\p{L}\p{M}\p{N}_\- ]*[\p{L}\p{M}\p{N}_]$`)

type LabelStore interface {
	SaveLabel(l *models.Label) error
	GetLabel(orgID, id int64) (*models.Label, error)
	ListLabels(orgID int64) ([]*models.Label, error)
}

// LabelInput is a label submission.
type LabelInput struct {
	Name        string
	Description string
	Keywords    []string
	PartnerIDs  []int64
}

func IsValidKeyword(kw string) bool {
	return utf8.RuneCountInString(kw) >= KeywordMinLength && keywordRegex.MatchString(kw)
}

// ValidateLabel checks a submission, returning a *ValidationError.
func ValidateLabel(in LabelInput) error {
	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.add("name", "This field is required.")
	case strings.EqualFold(name, reservedLabelName):
		verr.add("name", "Reserved label name")
	case strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-"):
		verr.add("name", "Label name cannot start with + or -")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.add("description", "This field is required.")
	}
	for _, kw := range in.Keywords {
		if kw == "" {
			continue
		}
		if utf8.RuneCountInString(kw) < KeywordMinLength {
			verr.add("keywords", "Keywords must be at least 3 characters long")
			break
		}
		if !keywordRegex.MatchString(kw) {
			verr.add("keywords", "Invalid keyword: "+kw)
			break
		}
	}
	return verr.orNil()
}

func cleanKeywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

type Labels struct {
	store    LabelStore
	gateways gateway.Provider
}

func NewLabels(s LabelStore, gateways gateway.Provider) *Labels {
	return &Labels{store: s, gateways: gateways}
}

func (l *Labels) checkUnique(orgID, selfID int64, name string) error {
	all, err := l.store.ListLabels(orgID)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.Active && other.ID != selfID && strings.EqualFold(other.Name, name) {
			return &ValidationError{Fields: map[string][]string{"name": {"Label name must be unique"}}}
		}
	}
	return nil
}

// Create validates the submission and binds the label to the gateway label of
// the same name, creating one there when none exists.
func (l *Labels) Create(ctx context.Context, org *models.Org, in LabelInput) (*models.Label, error) {
	if err := ValidateLabel(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := l.checkUnique(org.ID, 0, name); err != nil {
		return nil, err
	}

	gw, err := l.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	remote, err := gw.GetLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch gateway labels: %w", err)
	}
	var uuid string
	for _, r := range remote {
		if strings.EqualFold(r.Name, name) {
			uuid = r.UUID
			break
		}
	}
	if uuid == "" {
		created, err := gw.CreateLabel(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("create gateway label: %w", err)
		}
		uuid = created.UUID
	}

	label := &models.Label{
		OrgID:       org.ID,
		UUID:        uuid,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Keywords:    cleanKeywords(in.Keywords),
		PartnerIDs:  in.PartnerIDs,
		Active:      true,
	}
	if err := l.store.SaveLabel(label); err != nil {
		return nil, err
	}
	logger.Info("label_created", "org", org.ID, "label", label.ID, "uuid", uuid)
	return label, nil
}

func (l *Labels) Update(ctx context.Context, label *models.Label, in LabelInput) error {
	if err := ValidateLabel(in); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	if err := l.checkUnique(label.OrgID, label.ID, name); err != nil {
		return err
	}
	gw, err := l.gateways.ForOrg(label.OrgID)
	if err != nil {
		return err
	}
	if _, err := gw.UpdateLabel(ctx, label.UUID, name); err != nil {
		return fmt.Errorf("update gateway label: %w", err)
	}
	label.Name = name
	label.Description = strings.TrimSpace(in.Description)
	label.Keywords = cleanKeywords(in.Keywords)
	label.PartnerIDs = in.PartnerIDs
	return l.store.SaveLabel(label)
}

func (l *Labels) Release(label *models.Label) error {
	label.Active = false
	if err := l.store.SaveLabel(label); err != nil {
		return err
	}
	logger.Info("label_released", "org", label.OrgID, "label", label.ID)
	return nil
}

// Get returns an active label of the org.
func (l *Labels) Get(orgID, id int64) (*models.Label, error) {
	label, err := l.store.GetLabel(orgID, id)
	if err != nil {
		return nil, err
	}
	if !label.Active {
		return nil, fmt.Errorf("label %d released: %w", id, ErrNotFound)
	}
	return label, nil
}

// GetAll returns the org's active labels sorted by name. Users attached to a
// partner only get the labels that partner may see.
func (l *Labels) GetAll(orgID int64, user *models.User) ([]*models.Label, error) {
	all, err := l.store.ListLabels(orgID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Label, 0, len(all))
	for _, label := range all {
		if !label.Active {
			continue
		}
		if user != nil && !user.IsAdmin() && user.HasPartner() && !label.GrantsPartner(user.PartnerID) {
			continue
		}
		out = append(out, label)
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}
