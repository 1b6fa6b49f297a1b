package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pension/pkg/domain-errors"
)

func TestParse(t *testing.T) {
	t.Run("empty values use defaults", func(t *testing.T) {
		p, err := Parse("", "")
		require.NoError(t, err)
		assert.Equal(t, Page{Size: DefaultSize, Offset: 0}, p)
	})

	t.Run("non-numeric values are bad requests", func(t *testing.T) {
		_, err := Parse("ten", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("zero size is rejected", func(t *testing.T) {
		_, err := Parse("0", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("negative offset is rejected", func(t *testing.T) {
		_, err := Parse("10", "-1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("size above the query limit is rejected", func(t *testing.T) {
		_, err := Parse("201", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Page{Size: 500}.Validate())
	assert.NoError(t, Page{Size: MaxSize + 1, Offset: 3}.Validate())
	assert.True(t, dErrors.HasCode(Page{Size: 0}.Validate(), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(Page{Size: 1, Offset: -1}.Validate(), dErrors.CodeValidation))
}

func TestApply(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4}, Apply(rows, Page{Size: 2, Offset: 2}))
	assert.Equal(t, []int{5}, Apply(rows, Page{Size: 10, Offset: 4}))
	assert.Empty(t, Apply(rows, Page{Size: 2, Offset: 5}))
	assert.Equal(t, rows, Apply(rows, Unbounded()))
}
