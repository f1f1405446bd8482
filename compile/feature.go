package compile

import "github.com/hashicorp/go-version"

// Feature is a construct whose availability depends on the dialect and the
// server version being rendered for.
type Feature int

const (
	// FeatureWindow is OVER (...) on aggregate and ranking functions.
	FeatureWindow Feature = iota

	// FeatureExplicitNullTreatment is writing RESPECT NULLS and FROM FIRST
	// explicitly. Dialects without it get the equivalent default by omission.
	FeatureExplicitNullTreatment

	// FeatureIgnoreNulls is IGNORE NULLS and FROM LAST on window functions.
	FeatureIgnoreNulls

	// FeatureJSONValue is the SQL/JSON JSON_VALUE function with RETURNING,
	// ON EMPTY and ON ERROR.
	FeatureJSONValue

	// FeatureReturning is RETURNING on INSERT, UPDATE and DELETE.
	FeatureReturning

	// FeatureUpdateOrderLimit is ORDER BY and LIMIT on UPDATE and DELETE.
	FeatureUpdateOrderLimit

	// FeatureOrderedStringAgg is ORDER BY inside a string aggregate.
	FeatureOrderedStringAgg
)

var featureNames = map[Feature]string{
	FeatureWindow:                "window functions",
	FeatureExplicitNullTreatment: "RESPECT NULLS / FROM FIRST",
	FeatureIgnoreNulls:           "IGNORE NULLS / FROM LAST",
	FeatureJSONValue:             "JSON_VALUE",
	FeatureReturning:             "RETURNING",
	FeatureUpdateOrderLimit:      "ORDER BY / LIMIT on UPDATE and DELETE",
	FeatureOrderedStringAgg:      "ORDER BY in string aggregate",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return "unknown feature"
}

// Features returns every known feature in declaration order.
func Features() []Feature {
	return []Feature{
		FeatureWindow,
		FeatureExplicitNullTreatment,
		FeatureIgnoreNulls,
		FeatureJSONValue,
		FeatureReturning,
		FeatureUpdateOrderLimit,
		FeatureOrderedStringAgg,
	}
}

// featureTable maps a feature to the first server version that supports it.
// A feature missing from the table is never supported.
type featureTable map[Feature]*version.Version

func (t featureTable) lookup(f Feature) (*version.Version, bool) {
	v, ok := t[f]
	return v, ok
}

func mustVersion(s string) *version.Version {
	return version.Must(version.NewVersion(s))
}

var (
	postgresFeatures = featureTable{
		FeatureWindow:           mustVersion("8.4"),
		FeatureJSONValue:        mustVersion("17"),
		FeatureReturning:        mustVersion("8.2"),
		FeatureOrderedStringAgg: mustVersion("9.0"),
	}

	mysqlFeatures = featureTable{
		FeatureWindow:                mustVersion("8.0.2"),
		FeatureExplicitNullTreatment: mustVersion("8.0.2"),
		FeatureJSONValue:             mustVersion("8.0.21"),
		FeatureUpdateOrderLimit:      mustVersion("5.0"),
		FeatureOrderedStringAgg:      mustVersion("5.0"),
	}

	sqliteFeatures = featureTable{
		FeatureWindow:           mustVersion("3.25.0"),
		FeatureReturning:        mustVersion("3.35.0"),
		FeatureOrderedStringAgg: mustVersion("3.44.0"),
	}
)
