package classifier

import (
	"sort"
	"strings"
	"unicode/utf8"

	"clinicdash/internal/models"
)

// Specialty is the top level of the treatment taxonomy
type Specialty string

const (
	Surgery     Specialty = "surgery"
	Dermatology Specialty = "dermatology"
	HairRemoval Specialty = "hair_removal"
	Other       Specialty = "other"
)

// Specialties lists specialties in display order
var Specialties = []Specialty{Surgery, Dermatology, HairRemoval, Other}

// Label returns the Japanese display label
func (s Specialty) Label() string {
	switch s {
	case Surgery:
		return "外科"
	case Dermatology:
		return "皮膚科"
	case HairRemoval:
		return "脱毛"
	default:
		return "その他"
	}
}

// UncategorizedID is returned when no rule matches
const UncategorizedID = "other_uncategorized"

// Category is one row of the canonical table. A category may carry several
// display labels; the first is the one shown, and revenue is always summed
// by ID.
type Category struct {
	ID          string    `json:"id"`
	Specialty   Specialty `json:"specialty"`
	Subcategory string    `json:"subcategory"`
	Labels      []string  `json:"labels"`
	Keywords    []string  `json:"-"`
}

// Label returns the display label
func (c Category) Label() string {
	if len(c.Labels) == 0 {
		return c.ID
	}
	return c.Labels[0]
}

// Result is the outcome of classifying one payment item
type Result struct {
	Specialty   Specialty `json:"specialty"`
	Subcategory string    `json:"subcategory"`
	CategoryID  string    `json:"categoryId"`
	Label       string    `json:"label"`
}

// canonical is the immutable category table in display order. Within a
// specialty the order is also the keyword priority.
var canonical = []Category{
	{ID: "surgery_liposuction", Specialty: Surgery, Subcategory: "liposuction", Labels: []string{"脂肪吸引"}, Keywords: []string{"脂肪吸引"}},
	{ID: "surgery_small_face", Specialty: Surgery, Subcategory: "small_face", Labels: []string{"小顔"}, Keywords: []string{"小顔", "バッカル"}},
	{ID: "surgery_thread_lift", Specialty: Surgery, Subcategory: "thread_lift", Labels: []string{"糸リフト"}, Keywords: []string{"スレッド", "糸"}},
	{ID: "surgery_dark_circles", Specialty: Surgery, Subcategory: "dark_circles", Labels: []string{"クマ取り"}, Keywords: []string{"クマ", "脱脂"}},
	{ID: "surgery_nose", Specialty: Surgery, Subcategory: "nose", Labels: []string{"鼻"}, Keywords: []string{"鼻"}},
	{ID: "surgery_double_eyelid", Specialty: Surgery, Subcategory: "double_eyelid", Labels: []string{"二重"}, Keywords: []string{"二重", "埋没", "切開", "眼瞼"}},
	{ID: "surgery_other", Specialty: Surgery, Subcategory: "other", Labels: []string{"外科その他"}},

	{ID: "dermatology_injection", Specialty: Dermatology, Subcategory: "injection", Labels: []string{"注入"}, Keywords: []string{"ヒアルロン酸", "ボトックス", "ボツリヌス", "注入"}},
	{ID: "dermatology_skin", Specialty: Dermatology, Subcategory: "skin", Labels: []string{"肌治療", "スキン"}, Keywords: []string{"ピーリング", "ダーマペン", "フォト", "レーザー", "ハイフ", "hifu", "肌"}},
	{ID: "dermatology_drip", Specialty: Dermatology, Subcategory: "drip", Labels: []string{"点滴・注射"}, Keywords: []string{"点滴", "注射"}},
	{ID: "dermatology_other", Specialty: Dermatology, Subcategory: "other", Labels: []string{"皮膚科その他"}},

	{ID: "hair_removal_full_body", Specialty: HairRemoval, Subcategory: "full_body", Labels: []string{"全身脱毛"}, Keywords: []string{"全身"}},
	{ID: "hair_removal_face", Specialty: HairRemoval, Subcategory: "face", Labels: []string{"顔脱毛"}, Keywords: []string{"顔"}},
	{ID: "hair_removal_vio", Specialty: HairRemoval, Subcategory: "vio", Labels: []string{"VIO脱毛"}, Keywords: []string{"vio"}},
	{ID: "hair_removal_other", Specialty: HairRemoval, Subcategory: "other", Labels: []string{"脱毛その他"}},

	{ID: "other_piercing", Specialty: Other, Subcategory: "piercing", Labels: []string{"ピアス"}, Keywords: []string{"ピアス"}},
	{ID: "other_products", Specialty: Other, Subcategory: "products", Labels: []string{"物販"}, Keywords: []string{"物販", "化粧品", "ホームケア"}},
	{ID: "other_anesthesia_needle_pack", Specialty: Other, Subcategory: "anesthesia_needle_pack", Labels: []string{"麻酔・針・パック"}, Keywords: []string{"麻酔", "針", "パック"}},
	{ID: UncategorizedID, Specialty: Other, Subcategory: "uncategorized", Labels: []string{"未分類"}},
}

// Category markers (normalized)
var (
	HairRemovalMarkers = []string{"脱毛"}
	SurgeryMarkers     = []string{"外科", "整形", "手術", "オペ"}
	DermatologyMarkers = []string{"皮膚", "美容皮膚", "注入", "点滴", "スキン"}
)

// otherOrder is the priority of the "other" rules over category and name
var otherOrder = []string{"other_piercing", "other_products", "other_anesthesia_needle_pack"}

// anesthesiaID is only matched on the name when no specialty applies.
// Surgery and skin treatment names routinely mention 麻酔 or パック.
const anesthesiaID = "other_anesthesia_needle_pack"

var (
	byID = make(map[string]int, len(canonical))

	// nameIndex holds the surgery and dermatology keywords, longest first,
	// so a name-only scan prefers the most specific match.
	nameIndex []keywordEntry
)

type keywordEntry struct {
	keyword string
	id      string
}

func init() {
	for i, c := range canonical {
		byID[c.ID] = i
		if c.Specialty == Other || c.Specialty == HairRemoval {
			continue
		}
		for _, kw := range c.Keywords {
			nameIndex = append(nameIndex, keywordEntry{keyword: kw, id: c.ID})
		}
	}
	sort.SliceStable(nameIndex, func(i, j int) bool {
		return utf8.RuneCountInString(nameIndex[i].keyword) > utf8.RuneCountInString(nameIndex[j].keyword)
	})
}

// Categories returns a copy of the canonical table in display order
func Categories() []Category {
	out := make([]Category, len(canonical))
	copy(out, canonical)
	return out
}

// Lookup returns the canonical category for an id
func Lookup(id string) (Category, bool) {
	i, ok := byID[id]
	if !ok {
		return Category{}, false
	}
	return canonical[i], true
}

// LabelFor returns the display label for a category id, or the id itself
func LabelFor(id string) string {
	if c, ok := Lookup(id); ok {
		return c.Label()
	}
	return id
}

// ClassifyItem classifies a payment item
func ClassifyItem(item models.PaymentItem) Result {
	return Classify(item.Category.String(), item.Name.String())
}

// Classify maps a free-text (category, name) pair onto the canonical table.
// It is total and deterministic: every input yields a category and the same
// input always yields the same one.
func Classify(category, name string) Result {
	cat := models.Normalize(category)
	nm := models.Normalize(name)

	// exact canonical id
	if _, ok := byID[cat]; ok {
		return result(cat)
	}

	if containsAny(cat, HairRemovalMarkers) {
		return result(hairRemoval(nm))
	}

	for _, id := range otherOrder {
		c := canonical[byID[id]]
		if containsAny(cat, c.Keywords) || (id != anesthesiaID && containsAny(nm, c.Keywords)) {
			return result(id)
		}
	}

	if containsAny(cat, SurgeryMarkers) {
		return result(withinSpecialty(Surgery, nm, "surgery_other"))
	}

	if containsAny(cat, DermatologyMarkers) {
		return result(withinSpecialty(Dermatology, nm, "dermatology_other"))
	}

	// name-only scan
	if containsAny(nm, HairRemovalMarkers) {
		return result(hairRemoval(nm))
	}
	for _, e := range nameIndex {
		if strings.Contains(nm, e.keyword) {
			return result(e.id)
		}
	}
	if containsAny(nm, canonical[byID[anesthesiaID]].Keywords) {
		return result(anesthesiaID)
	}

	return result(UncategorizedID)
}

// hairRemoval picks the hair removal subcategory from the treatment name
func hairRemoval(name string) string {
	return withinSpecialty(HairRemoval, name, "hair_removal_other")
}

// withinSpecialty returns the first category of the specialty whose
// keywords appear in name, or fallback.
func withinSpecialty(s Specialty, name, fallback string) string {
	for _, c := range canonical {
		if c.Specialty == s && containsAny(name, c.Keywords) {
			return c.ID
		}
	}
	return fallback
}

func result(id string) Result {
	c := canonical[byID[id]]
	return Result{
		Specialty:   c.Specialty,
		Subcategory: c.Subcategory,
		CategoryID:  c.ID,
		Label:       c.Label(),
	}
}

// containsAny checks if text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
