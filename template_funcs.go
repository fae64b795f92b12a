package pagecat

import (
	"text/template"

	"github.com/shepherd-chms/pagecat/tfunc"
)

// funcMapInput is input to the funcMap, which builds the template functions.
type funcMapInput struct {
	funcMapMerge template.FuncMap
}

// funcMap is the map of template functions to their respective functions.
// The page functions use their default currency and locale unless replaced
// through funcMapMerge.
func funcMap(i *funcMapInput) template.FuncMap {
	r := tfunc.All()
	for k, v := range i.funcMapMerge {
		r[k] = v
	}
	return r
}
