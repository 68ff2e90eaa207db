package testutil

import "github.com/roach88/domex/internal/domain"

// Case is a search on the fixture dataset with its expected ids, in id
// order. Every backend must agree on it.
type Case struct {
	Name   string
	Model  string
	Domain []any
	Want   []int64
}

func term(field, op string, value any) []any { return []any{field, op, value} }

// Cases covers every field type and operator family of the fixture
// models. Unset values are where backends tend to disagree, so most
// fields are tested on both sides of false.
func Cases() []Case {
	all := []int64{Acme, TestA, TestB, Zola, Other, Zoe}
	return []Case{
		{"empty domain", "res.partner", nil, all},
		{"id in nothing", "res.partner", []any{term("id", "in", []any{})}, nil},

		{"ilike", "res.partner", []any{term("name", "ilike", "zola")}, []int64{Zola}},
		{"ilike unaccent", "res.partner", []any{term("name", "ilike", "emile")}, []int64{Zola}},
		{"ilike accented pattern", "res.partner", []any{term("name", "ilike", "ZOË")}, []int64{Zoe}},
		{"like is case sensitive", "res.partner", []any{term("name", "like", "test")}, []int64{TestA, TestB}},
		{"like escaped underscore", "res.partner", []any{term("name", "=like", `test\_%`)}, []int64{TestA, TestB}},
		{"like underscore wildcard", "res.partner", []any{term("ref", "=like", "_-1")}, []int64{TestA}},
		{"not ilike", "res.partner", []any{term("name", "not ilike", "o")}, []int64{Acme, TestA, TestB}},
		{"not ilike on unset", "res.partner", []any{term("ref", "not ilike", "1")}, []int64{Acme, Zola, Other, Zoe}},
		{"ilike percent in pattern", "res.partner", []any{term("comment", "ilike", "100%")}, []int64{Other}},
		{"=ilike", "res.partner", []any{term("comment", "=ilike", "main OFFICE")}, []int64{Acme}},

		{"char is false", "res.partner", []any{term("ref", "=", false)}, []int64{Zola, Other, Zoe}},
		{"char is set", "res.partner", []any{term("ref", "!=", false)}, []int64{Acme, TestA, TestB}},
		{"char in", "res.partner", []any{term("ref", "in", []any{"ACM", "B_1", "nope"})}, []int64{Acme, TestB}},

		{"integer zero is unset", "res.partner", []any{term("color", "=", 0)}, []int64{TestA, Zola}},
		{"integer not zero", "res.partner", []any{term("color", "!=", 0)}, []int64{Acme, TestB, Other, Zoe}},
		{"integer false", "res.partner", []any{term("color", "=", false)}, []int64{TestA, Zola}},
		{"integer greater", "res.partner", []any{term("color", ">", 2)}, []int64{Acme, TestB, Other}},
		{"integer less counts unset", "res.partner", []any{term("color", "<", 3)}, []int64{TestA, Zola, Zoe}},
		{"integer in with false", "res.partner", []any{term("color", "in", []any{false, 7})}, []int64{TestA, Zola, Other}},
		{"integer equals integral float", "res.partner", []any{term("color", "=", 3.0)}, []int64{Acme}},
		{"integer equals float string", "res.partner", []any{term("color", "=", "3.0")}, []int64{Acme}},
		{"integer in float zero counts unset", "res.partner", []any{term("color", "in", []any{0.0, 5})}, []int64{TestA, TestB, Zola}},
		{"integer equals fraction", "res.partner", []any{term("color", "=", 2.5)}, nil},
		{"integer not in fraction", "res.partner", []any{term("color", "not in", []any{2.5})}, all},
		{"float greater or equal", "res.partner", []any{term("credit_limit", ">=", 500)}, []int64{Acme, TestB}},
		{"float less counts unset", "res.partner", []any{term("credit_limit", "<", 300.0)}, []int64{TestA, Zola, Other, Zoe}},
		{"monetary negative", "res.partner", []any{term("balance", "<", 0)}, []int64{Other}},

		{"boolean true", "res.partner", []any{term("active", "=", true)}, []int64{Acme, TestA, Zola, Other}},
		{"boolean false counts unset", "res.partner", []any{term("active", "=", false)}, []int64{TestB, Zoe}},
		{"boolean not true", "res.partner", []any{term("employee", "!=", true)}, []int64{Acme, TestB, Zola, Other}},
		{"boolean both", "res.partner", []any{term("active", "in", []any{true, false})}, all},

		{"search delegate true", "res.partner", []any{term("is_company", "=", true)}, []int64{Acme, Other}},
		{"search delegate false", "res.partner", []any{term("is_company", "=", false)}, []int64{TestA, TestB, Zola, Zoe}},

		{"date equal", "res.partner", []any{term("date", "=", "2024-01-15")}, []int64{Acme}},
		{"date after", "res.partner", []any{term("date", ">", "2024-01-15")}, []int64{TestA, Zola}},
		{"date unset", "res.partner", []any{term("date", "=", false)}, []int64{TestB, Other, Zoe}},
		{"datetime equal", "res.partner", []any{term("create_date", "=", "2024-01-15 10:30:00")}, []int64{Acme}},
		{"datetime from date", "res.partner", []any{term("create_date", ">=", "2024-01-15")}, []int64{Acme, TestA, Zola}},
		{"datetime up to date", "res.partner", []any{term("create_date", "<=", "2024-01-15")}, []int64{Acme, Zola, Other}},
		{"datetime before", "res.partner", []any{term("create_date", "<", "2024-01-01 00:00:00")}, []int64{Other}},

		{"binary attachment set", "res.partner", []any{term("image", "!=", false)}, []int64{Acme}},
		{"binary attachment unset", "res.partner", []any{term("image", "=", false)}, []int64{TestA, TestB, Zola, Other, Zoe}},
		{"binary column set", "res.partner", []any{term("signature", "!=", false)}, []int64{TestA}},

		{"many2one path", "res.partner", []any{term("country_id.code", "=", "BE")}, []int64{Acme, Other}},
		{"many2one translated path", "res.partner", []any{term("country_id.name", "ilike", "belg")}, []int64{Acme, Other}},
		{"many2one unset", "res.partner", []any{term("country_id", "=", false)}, []int64{TestB, Zoe}},
		{"many2one id", "res.partner", []any{term("parent_id", "=", 1)}, []int64{TestA, TestB}},
		{"many2one not id counts unset", "res.partner", []any{term("parent_id", "not in", []any{1})}, []int64{Acme, Zola, Other, Zoe}},
		{"many2one name search", "res.partner", []any{term("country_id", "=", "Belgium")}, []int64{Acme, Other}},
		{"many2one negative name search", "res.partner", []any{term("country_id", "!=", "Belgium")}, []int64{TestA, TestB, Zola, Zoe}},
		{"many2one any", "res.partner", []any{term("parent_id", "any", []any{term("name", "=", "Acme")})}, []int64{TestA, TestB}},
		{"many2one none", "res.partner", []any{term("parent_id", "not any", []any{term("name", "=", "Acme")})}, []int64{Acme, Zola, Other, Zoe}},
		{"related field", "res.partner", []any{term("country_code", "=", "DE")}, []int64{Zola}},

		{"one2many any", "res.partner", []any{term("child_ids", "any", []any{term("name", "ilike", "zola")})}, []int64{TestA}},
		{"one2many unset", "res.partner", []any{term("child_ids", "=", false)}, []int64{TestB, Zola, Zoe}},
		{"one2many set", "res.partner", []any{term("child_ids", "!=", false)}, []int64{Acme, TestA, Other}},
		{"one2many ids", "res.partner", []any{term("child_ids", "in", []any{TestB, Zoe})}, []int64{Acme, Other}},
		{"one2many path", "res.partner", []any{term("user_ids.login", "=", "jane")}, []int64{TestA}},
		{"one2many without users", "res.partner", []any{term("user_ids", "=", false)}, []int64{TestB, Zola, Other, Zoe}},

		{"many2many id", "res.partner", []any{term("category_id", "=", 1)}, []int64{Acme, TestA}},
		{"many2many not id", "res.partner", []any{term("category_id", "not in", []any{1})}, []int64{TestB, Zola, Other, Zoe}},
		{"many2many path", "res.partner", []any{term("category_id.name", "ilike", "vendor")}, []int64{Acme, TestA}},
		{"many2many id or none", "res.partner", []any{term("category_id", "in", []any{3, false})}, []int64{TestB, Other, Zoe}},
		{"many2many child_of", "res.partner", []any{term("category_id", "child_of", 1)}, []int64{Acme, TestA, Zola}},

		{"child_of parent_path", "res.partner", []any{term("id", "child_of", 1)}, []int64{Acme, TestA, TestB, Zola}},
		{"parent_of parent_path", "res.partner", []any{term("id", "parent_of", Zola)}, []int64{Acme, TestA, Zola}},
		{"child_of by name", "res.partner", []any{term("id", "child_of", "other")}, []int64{Other, Zoe}},
		{"parent_of through one2many", "res.partner", []any{term("child_ids", "parent_of", Acme)}, []int64{Acme, TestA}},
		{"parent_path like", "res.partner", []any{term("parent_path", "=like", "1/%")}, []int64{Acme, TestA, TestB, Zola}},

		{"or", "res.partner", []any{"|", term("color", "=", 3), term("name", "ilike", "zoë")}, []int64{Acme, Zoe}},
		{"not", "res.partner", []any{"!", term("name", "ilike", "a")}, []int64{TestB, Other, Zoe}},
		{"and with path", "res.partner", []any{
			term("active", "=", true),
			term("country_id.code", "in", []any{"BE", "FR"}),
		}, []int64{Acme, TestA, Other}},
		{"not or", "res.partner", []any{"!", "|", term("color", ">", 4), term("active", "=", false)}, []int64{Acme, TestA, Zola}},
		{"display_name", "res.partner", []any{term("display_name", "ilike", "acme")}, []int64{Acme}},

		{"inherited field", "res.users", []any{term("name", "ilike", "acme")}, []int64{1}},
		{"users boolean", "res.users", []any{term("share", "=", true)}, []int64{2}},
		{"users path", "res.users", []any{term("partner_id.country_id.code", "=", "FR")}, []int64{2}},
		{"users display_name", "res.users", []any{term("display_name", "=", "admin")}, []int64{1}},

		{"category root", "res.partner.category", []any{term("parent_id", "=", false)}, []int64{1, 3}},
		{"category child_of", "res.partner.category", []any{term("id", "child_of", 2)}, []int64{2, 4}},
		{"category zero color", "res.partner.category", []any{term("color", "=", 0)}, []int64{2, 3}},

		{"translated", "res.country", []any{term("name", "=", "Belgium")}, []int64{1}},
		{"translated fallback", "res.country", []any{term("name", "ilike", "fran")}, []int64{2}},
	}
}

// Build parses the case's domain.
func (c Case) Build() (domain.Domain, error) {
	return domain.FromList(c.Domain)
}
