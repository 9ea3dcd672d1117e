// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

// Statements issued by the visibility engine. They target the scene schema
// created by the sqlite and postgres packages and use only SQL accepted by
// both dialects.
var (
	// StmtSubjects lists every subject with its parent, hide flag and
	// optional target partition (a model id the subject presents).
	StmtSubjects = Statement{
		Name: "subjects",
		SQL: `SELECT id, COALESCE(parent_id, ''), hide_in_hierarchy, COALESCE(target_partition_id, '')
FROM subjects`,
	}

	// StmtModels lists non-private models with the subject owning their
	// partition.
	StmtModels = Statement{
		Name: "models",
		SQL: `SELECT id, parent_subject_id
FROM models
WHERE is_private = 0`,
	}

	// StmtModelCategories lists the categories of each model's root
	// elements.
	StmtModelCategories = Statement{
		Name: "model_categories",
		SQL: `SELECT model_id, category_id
FROM elements
WHERE parent_id IS NULL
GROUP BY model_id, category_id`,
	}

	// StmtModelElementCounts counts all elements per model.
	StmtModelElementCounts = Statement{
		Name: "model_element_counts",
		SQL: `SELECT model_id, COUNT(*)
FROM elements
GROUP BY model_id`,
	}

	// StmtCategoryElementCount counts a category's root elements in a
	// model plus all of their descendants. Args: model id, category id.
	StmtCategoryElementCount = Statement{
		Name: "category_element_count",
		SQL: `WITH RECURSIVE category_elements(id) AS (
	SELECT id FROM elements WHERE model_id = ? AND category_id = ? AND parent_id IS NULL
	UNION ALL
	SELECT e.id FROM elements e JOIN category_elements p ON e.parent_id = p.id
)
SELECT COUNT(*) FROM category_elements`,
	}

	// StmtElementInfo resolves element ids to (id, model, category).
	// Expand with WithInList.
	StmtElementInfo = Statement{
		Name: "element_info",
		SQL: `SELECT id, model_id, category_id
FROM elements
WHERE id IN ({ids})`,
	}

	// StmtElementDescendants lists all transitive children of the given
	// elements. Expand with WithInList.
	StmtElementDescendants = Statement{
		Name: "element_descendants",
		SQL: `WITH RECURSIVE descendants(id) AS (
	SELECT id FROM elements WHERE parent_id IN ({ids})
	UNION ALL
	SELECT e.id FROM elements e JOIN descendants d ON e.parent_id = d.id
)
SELECT id FROM descendants`,
	}

	// StmtClassBases lists the direct base classes of a class. Arg: class
	// name.
	StmtClassBases = Statement{
		Name: "class_bases",
		SQL: `SELECT base_name
FROM class_bases
WHERE class_name = ?`,
	}
)
