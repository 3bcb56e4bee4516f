package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresOverlapBackstop(t *testing.T) {
	s := Schema()
	assert.Contains(t, s, "btree_gist")
	assert.Contains(t, s, "tstzrange(start_time, end_time, '[)') WITH &&")
	assert.Contains(t, s, "WHERE (status = 'confirmed')")
	assert.Contains(t, s, "CHECK (start_time < end_time)")
}
