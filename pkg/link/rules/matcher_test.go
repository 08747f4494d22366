package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
)

func TestMatcherAssignsSectionToExplicitRule(t *testing.T) {
	sm := section.NewSectionMap()
	text := sm.GetOrCreate(".text")
	rule := section.NewRuleContainer(section.PolicyNoKeep, section.RuleSpec{
		SectionPattern: []*section.WildcardPattern{section.NewWildcardPattern(0, ".text*", section.SortNone)},
	}, ".text")
	text.AddRule(rule)

	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".text", section.KSRegular, f)
	f.Sections = append(f.Sections, sec)

	m := NewMatcher(sm, OrphanWarn)
	m.StorePatternsForInput(f, 1)
	orphans := m.AssignInputFromOutput(f)

	require.Empty(t, orphans)
	assert.Equal(t, text, sec.Output)
	assert.Equal(t, rule, sec.Rule)
}

func TestMatcherProducesOrphanWhenNoRuleMatches(t *testing.T) {
	sm := section.NewSectionMap()
	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".custom", section.KSRegular, f)
	f.Sections = append(f.Sections, sec)

	m := NewMatcher(sm, OrphanWarn)
	m.StorePatternsForInput(f, 0)
	orphans := m.AssignInputFromOutput(f)

	require.Len(t, orphans, 1)
	assert.Equal(t, sec, orphans[0])
}

func TestMatcherSpecificRuleStealsFromSpecialKeep(t *testing.T) {
	sm := section.NewSectionMap()
	generic := sm.GetOrCreate(".generic")
	specialRule := section.NewRuleContainer(section.PolicySpecialKeep, section.RuleSpec{
		SectionPattern: []*section.WildcardPattern{section.NewWildcardPattern(0, "*", section.SortNone)},
	}, ".generic")
	generic.AddRule(specialRule)

	specific := sm.GetOrCreate(".rodata")
	specificRule := section.NewRuleContainer(section.PolicyKeep, section.RuleSpec{
		SectionPattern: []*section.WildcardPattern{section.NewWildcardPattern(1, ".rodata*", section.SortNone)},
	}, ".rodata")
	specific.AddRule(specificRule)

	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".rodata.str1.1", section.KSRegular, f)
	f.Sections = append(f.Sections, sec)

	m := NewMatcher(sm, OrphanWarn)
	m.StorePatternsForInput(f, 2)
	orphans := m.AssignInputFromOutput(f)

	require.Empty(t, orphans)
	assert.Equal(t, specific, sec.Output)
}
