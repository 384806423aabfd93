// Package corpus holds historical requirement extractions used as few-shot
// examples. Extraction prompts are augmented with the k most similar past
// notices so the model sees the exact output contract on real data.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/licitaflow/compliance-cli/internal/model"
	"github.com/licitaflow/compliance-cli/internal/normalize"
)

// Example is one historical notice with its manually verified requirements.
type Example struct {
	NoticeName    string              `json:"notice_name" yaml:"notice_name"`
	NoticeExcerpt string              `json:"notice_excerpt,omitempty" yaml:"notice_excerpt,omitempty"`
	Requirements  []model.Requirement `json:"requirements" yaml:"requirements"`
}

// Corpus is an in-memory set of examples.
type Corpus struct {
	examples []Example
}

// New builds a Corpus from the given examples.
func New(examples ...Example) *Corpus {
	return &Corpus{examples: examples}
}

// Len returns the number of loaded examples.
func (c *Corpus) Len() int { return len(c.examples) }

// Load reads a JSON array of examples from a single file.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "corpus: read examples %s", path)
	}

	var examples []Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, eris.Wrapf(err, "corpus: unmarshal examples %s", path)
	}

	return New(examples...), nil
}

// LoadDir reads every .json and .yaml/.yml file in dir. JSON files hold an
// array of examples or a single example; YAML files hold a top-level
// "examples" key. Files that fail to parse are logged and skipped so one bad
// fixture cannot disable the corpus.
func LoadDir(dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "corpus: read examples dir %s", dir)
	}

	c := &Corpus{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		var (
			loaded []Example
			perr   error
		)
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json":
			loaded, perr = loadJSONFile(path)
		case ".yaml", ".yml":
			loaded, perr = loadYAMLFile(path)
		default:
			continue
		}
		if perr != nil {
			zap.L().Warn("corpus: skipping unparseable example file",
				zap.String("path", path),
				zap.Error(perr),
			)
			continue
		}
		c.examples = append(c.examples, loaded...)
	}

	zap.L().Info("corpus: loaded examples",
		zap.String("dir", dir),
		zap.Int("count", len(c.examples)),
	)
	return c, nil
}

func loadJSONFile(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "corpus: read example file")
	}

	var examples []Example
	if err := json.Unmarshal(data, &examples); err == nil {
		return examples, nil
	}

	var single Example
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, eris.Wrap(err, "corpus: unmarshal example file")
	}
	return []Example{single}, nil
}

func loadYAMLFile(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "corpus: read example file")
	}

	var wrapper struct {
		Examples []Example `yaml:"examples"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "corpus: unmarshal example file")
	}
	return wrapper.Examples, nil
}

// TopK returns the k examples most similar to the given notice text, by
// Jaccard overlap of normalized keyword sets. Ties keep load order.
func (c *Corpus) TopK(text string, k int) []Example {
	if len(c.examples) == 0 || k <= 0 {
		return nil
	}

	noticeTokens := normalize.Tokens(text)

	type scored struct {
		score   float64
		example Example
	}
	ranked := make([]scored, 0, len(c.examples))
	for _, ex := range c.examples {
		ranked = append(ranked, scored{score: jaccard(noticeTokens, ex.tokens()), example: ex})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Example, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].example
	}
	return out
}

func (e Example) tokens() map[string]struct{} {
	var b strings.Builder
	b.WriteString(e.NoticeExcerpt)
	for _, req := range e.Requirements {
		b.WriteByte(' ')
		b.WriteString(req.Name)
		b.WriteByte(' ')
		b.WriteString(req.Description)
	}
	return normalize.Tokens(b.String())
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// maxRequirementsPerExample caps how many requirements each few-shot example
// contributes, keeping the prompt size bounded.
const maxRequirementsPerExample = 5

// promptRequirement is the JSON shape the extraction prompt teaches.
type promptRequirement struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	Mandatory    bool   `json:"mandatory"`
}

// FewShotBlock renders examples as a pt-BR prompt section showing the exact
// output contract. Returns "" when there are no examples.
func FewShotBlock(examples []Example) string {
	if len(examples) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Aqui estão exemplos de extrações corretas de outros editais:\n\n")

	for i, ex := range examples {
		fmt.Fprintf(&b, "### Exemplo %d: %s\n", i+1, ex.NoticeName)
		b.WriteString("Documentos extraídos:\n")

		reqs := ex.Requirements
		if len(reqs) > maxRequirementsPerExample {
			reqs = reqs[:maxRequirementsPerExample]
		}
		view := make([]promptRequirement, len(reqs))
		for j, req := range reqs {
			view[j] = promptRequirement{
				Name:         req.Name,
				Category:     string(req.Category),
				Description:  req.Description,
				Requirements: req.Context,
				Mandatory:    req.Mandatory,
			}
		}
		encoded, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			continue
		}
		b.Write(encoded)
		b.WriteString("\n\n")
	}

	b.WriteString("Agora extraia os documentos do edital abaixo de forma similar:\n")
	return b.String()
}

// Builtin returns the compiled-in example set used when no corpus path is
// configured. Small on purpose: three notices covering the common
// qualification categories.
func Builtin() *Corpus {
	return New(
		Example{
			NoticeName:    "Pregão Eletrônico 45/2023 - Prefeitura Municipal de Campinas",
			NoticeExcerpt: "habilitação jurídica regularidade fiscal e trabalhista qualificação técnica certidão negativa de débitos",
			Requirements: []model.Requirement{
				{
					Name:        "Contrato Social",
					Category:    model.CategoryLegal,
					Description: "Ato constitutivo, estatuto ou contrato social em vigor, devidamente registrado",
					Mandatory:   true,
				},
				{
					Name:        "CND Federal",
					Category:    model.CategoryTax,
					Description: "Prova de regularidade para com a Fazenda Nacional",
					Mandatory:   true,
				},
				{
					Name:        "Certificado de Regularidade do FGTS",
					Category:    model.CategoryTax,
					Description: "Prova de regularidade relativa ao Fundo de Garantia do Tempo de Serviço (CRF)",
					Mandatory:   true,
				},
				{
					Name:        "CNDT - Certidão Negativa de Débitos Trabalhistas",
					Category:    model.CategoryTax,
					Description: "Prova de inexistência de débitos inadimplidos perante a Justiça do Trabalho",
					Mandatory:   true,
				},
				{
					Name:        "Atestado de Capacidade Técnica",
					Category:    model.CategoryTechnical,
					Description: "Atestado fornecido por pessoa jurídica de direito público ou privado comprovando aptidão",
					Mandatory:   true,
				},
			},
		},
		Example{
			NoticeName:    "Tomada de Preços 12/2023 - Secretaria de Estado da Educação",
			NoticeExcerpt: "qualificação econômico-financeira balanço patrimonial certidão negativa de falência inscrição cnpj",
			Requirements: []model.Requirement{
				{
					Name:        "Comprovante de Inscrição CNPJ",
					Category:    model.CategoryLegal,
					Description: "Prova de inscrição no Cadastro Nacional de Pessoa Jurídica",
					Mandatory:   true,
				},
				{
					Name:        "CND Estadual",
					Category:    model.CategoryTax,
					Description: "Prova de regularidade para com a Fazenda Estadual do domicílio da licitante",
					Mandatory:   true,
				},
				{
					Name:        "Balanço Patrimonial",
					Category:    model.CategoryEconomic,
					Description: "Balanço patrimonial e demonstrações contábeis do último exercício social",
					Mandatory:   true,
				},
				{
					Name:        "Certidão Negativa de Falência e Concordata",
					Category:    model.CategoryEconomic,
					Description: "Certidão negativa de falência ou recuperação judicial expedida pelo distribuidor da sede",
					Mandatory:   true,
				},
			},
		},
		Example{
			NoticeName:    "Concorrência 03/2024 - Município de Belo Horizonte",
			NoticeExcerpt: "certidão municipal alvará de localização proposta comercial de preços",
			Requirements: []model.Requirement{
				{
					Name:        "CND Municipal",
					Category:    model.CategoryTax,
					Description: "Prova de regularidade para com a Fazenda Municipal do domicílio da licitante",
					Mandatory:   true,
				},
				{
					Name:        "Alvará de Localização e Funcionamento",
					Category:    model.CategoryLegal,
					Description: "Alvará de localização e funcionamento expedido pelo município sede da licitante",
					Mandatory:   false,
				},
				{
					Name:        "Proposta Comercial",
					Category:    model.CategoryCommercial,
					Description: "Proposta de preços conforme modelo do anexo, com validade mínima de 60 dias",
					Mandatory:   true,
				},
			},
		},
	)
}
