/*
Package dsl provides a fluent builder for declaring Ripple handlers and features in Go.

It is an alternative to writing epic.Handler literals: strategies are composed in call order,
so each decorator wraps whatever was configured before it.

Example usage:

	b := dsl.New()

	b.Add("catalog/search").
		On(catalog.ActionTextSearch).
		KeyBy("Catalog").
		LatestWins().
		Debounce(300 * time.Millisecond).
		Bracket("catalogSearch").
		Do(searchBody)

	b.Feature("geoprocessing").
		When("geoprocessing.enabled").
		OnDeactivate(cleanup).
		Add("geoprocessing/intersect").
		On(geoprocessing.ActionMapClick).
		Do(intersectBody)

	set, err := b.Build()
	// ... pass set to ripple.New(ripple.WithHandlers(set))
*/
package dsl
