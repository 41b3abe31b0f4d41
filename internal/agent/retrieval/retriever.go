package retrieval

import (
	"context"
	"strings"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/model"
	logx "github.com/saleswire/server/pkg/logger"
)

// Family labels returned by the classifier. Unknown labels filter nothing,
// which leaves the full catalog as candidates.
const (
	FamilyCSO      = "CSO"
	FamilyProduct  = "PRODUCT"
	FamilyExport   = "EXPORT"
	FamilyDomestic = "DOMESTIC"
	FamilyState    = "STATE"
	FamilyCategory = "CATEGORY"
	FamilyGeneral  = "GENERAL"
)

// FamilyClassifier labels a question with one catalog family.
type FamilyClassifier interface {
	Classify(ctx context.Context, question string) (string, error)
}

var indianStates = []string{
	"andhra pradesh", "arunachal pradesh", "assam", "bihar", "chhattisgarh",
	"goa", "gujarat", "haryana", "himachal pradesh", "jharkhand", "karnataka",
	"kerala", "madhya pradesh", "maharashtra", "manipur", "meghalaya", "mizoram",
	"nagaland", "odisha", "punjab", "rajasthan", "sikkim", "tamil nadu",
	"telangana", "tripura", "uttar pradesh", "uttarakhand", "west bengal",
	"delhi", "jammu", "kashmir",
}

var stateCodes = []string{
	"ap", "ar", "as", "br", "cg", "ga", "gj", "hr", "hp", "jh", "ka", "kl", "mp", "mh",
	"mn", "ml", "mz", "nl", "or", "pb", "rj", "sk", "tn", "ts", "tr", "up", "uk", "wb", "dl",
}

// csoPrefixes are common CSO code prefixes seen in questions.
var csoPrefixes = []string{"DCBH", "DCMH", "DCRJ"}

// Retriever narrows the catalog by family, then ranks the remaining
// candidates by embedding similarity.
type Retriever struct {
	reg        *catalog.Registry
	classifier FamilyClassifier
	embedder   Embedder
	index      *Index
}

// NewRetriever builds the embedding index over the full catalog up front.
func NewRetriever(ctx context.Context, reg *catalog.Registry, classifier FamilyClassifier, embedder Embedder) (*Retriever, error) {
	index, err := BuildIndex(ctx, reg, embedder)
	if err != nil {
		return nil, err
	}
	return &Retriever{reg: reg, classifier: classifier, embedder: embedder, index: index}, nil
}

// LookupByText picks the template that best matches a free-text question.
// Classifier and embedding failures degrade to broader candidate sets rather
// than failing the turn.
func (r *Retriever) LookupByText(ctx context.Context, question string) (catalog.Template, error) {
	family, err := r.classifier.Classify(ctx, question)
	if err != nil {
		logx.Warn().Err(err).Msg("Family classification failed, using GENERAL")
		family = FamilyGeneral
	}
	logx.Debug().Str("family", family).Str("question", question).Msg("Query family")

	candidates := r.filterCandidates(family, question)
	if len(candidates) == 0 {
		candidates = r.allIDs()
	}
	if len(candidates) == 1 {
		return r.reg.ByID(candidates[0])
	}

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		logx.Warn().Err(err).Msg("Query embedding failed, using first candidate")
		return r.reg.ByID(candidates[0])
	}

	best, ok := r.index.Rank(vector, candidates)
	if !ok {
		return r.reg.ByID(candidates[0])
	}
	return r.reg.ByID(best)
}

// LookupByID fetches a template directly, used for query switching without
// re-running semantic search.
func (r *Retriever) LookupByID(ctx context.Context, id catalog.TemplateID) (catalog.Template, error) {
	return r.reg.ByID(id)
}

// filterCandidates applies the family routing rules over the catalog.
func (r *Retriever) filterCandidates(family, question string) []catalog.TemplateID {
	qLower := strings.ToLower(question)
	state := MentionsState(question)
	export := strings.Contains(qLower, "export")

	var out []catalog.TemplateID
	for _, t := range r.reg.All() {
		id := strings.ToLower(t.ID.String())

		switch family {
		case FamilyCSO:
			if !strings.Contains(id, "cso") {
				continue
			}
		case FamilyProduct:
			if !strings.Contains(id, "product") {
				continue
			}
		case FamilyExport:
			if !strings.Contains(id, "export") {
				continue
			}
		case FamilyDomestic:
			if !strings.Contains(id, "domestic") {
				continue
			}
		case FamilyState:
			if !state {
				continue
			}
		case FamilyCategory:
			if !strings.Contains(id, "category") {
				continue
			}
		case FamilyGeneral:
			// Specialized templates only qualify when the question carries
			// their filter.
			if strings.Contains(id, "product_segment") {
				continue
			}
			if (strings.Contains(id, "by_state") || strings.Contains(id, "state_category")) && !state {
				continue
			}
			if (strings.Contains(id, "by_cso") || strings.Contains(id, "cso_category")) && !mentionsCSO(question) {
				continue
			}
		}

		// Prefer domestic over export unless explicitly mentioned.
		if family == FamilyProduct && !export && strings.Contains(id, "export") {
			continue
		}

		out = append(out, t.ID)
	}
	return out
}

func (r *Retriever) allIDs() []catalog.TemplateID {
	templates := r.reg.All()
	ids := make([]catalog.TemplateID, len(templates))
	for i, t := range templates {
		ids[i] = t.ID
	}
	return ids
}

// MentionsState reports whether the question names an Indian state or a
// standard state code as a whitespace-delimited word.
func MentionsState(question string) bool {
	padded := " " + strings.ToLower(question) + " "
	for _, s := range indianStates {
		if strings.Contains(padded, " "+s+" ") {
			return true
		}
	}
	for _, c := range stateCodes {
		if strings.Contains(padded, " "+c+" ") {
			return true
		}
	}
	return false
}

func mentionsCSO(question string) bool {
	if strings.Contains(strings.ToLower(question), "cso") {
		return true
	}
	upper := strings.ToUpper(question)
	for _, prefix := range csoPrefixes {
		if strings.Contains(upper, prefix) {
			return true
		}
	}
	return false
}

var _ model.TemplateRetriever = (*Retriever)(nil)
