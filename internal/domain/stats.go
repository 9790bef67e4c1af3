package domain

import "sort"

// StatsRow is the derived analytics view of one ticket. It is computed, never
// persisted as workflow state.
type StatsRow struct {
	TicketID              int64   `json:"ticket_id"`
	TenantID              int64   `json:"tenant_id"`
	StatusID              int64   `json:"status_id"`
	StatusKey             string  `json:"status_key"`
	CurrentTargetUserID   *int64  `json:"current_target_user_id"`
	DepartmentIDs         []int64 `json:"department_ids"`
	IsResolved            bool    `json:"is_resolved"`
	IsRejected            bool    `json:"is_rejected"`
	IsCanceled            bool    `json:"is_canceled"`
	TotalTimeSeconds      *int64  `json:"total_time_seconds"`
	AcceptanceTimeSeconds *int64  `json:"acceptance_time_seconds"`
	TargetUserIDs         []int64 `json:"target_user_ids"`
}

// ProjectionOptions tunes product decisions of the projection.
type ProjectionOptions struct {
	// CanceledCountsTowardTotal makes canceled tickets populate
	// TotalTimeSeconds.
	CanceledCountsTowardTotal bool
}

// ProjectStats computes the stats row for a ticket. userDepartments maps user
// ids of the chain and the reviewer to their department.
func ProjectStats(t *Ticket, chain AssignmentChain, status TicketStatus, userDepartments map[int64]int64, opts ProjectionOptions) StatsRow {
	row := StatsRow{
		TicketID:            t.ID,
		TenantID:            t.TenantID,
		StatusID:            t.StatusID,
		StatusKey:           status.Key,
		CurrentTargetUserID: cloneInt64(t.CurrentTargetUserID),
		IsResolved:          t.CompletedAt != nil,
		IsRejected:          t.RejectedAt != nil,
		IsCanceled:          t.CanceledAt != nil,
		TargetUserIDs:       chain.UserIDs(),
	}
	if t.AcceptedAt != nil {
		secs := int64(t.AcceptedAt.Sub(t.CreatedAt).Seconds())
		row.AcceptanceTimeSeconds = &secs
	}
	end := t.CompletedAt
	if end == nil {
		end = t.RejectedAt
	}
	if end == nil && opts.CanceledCountsTowardTotal {
		end = t.CanceledAt
	}
	if end != nil {
		secs := int64(end.Sub(t.CreatedAt).Seconds())
		row.TotalTimeSeconds = &secs
	}

	depts := map[int64]struct{}{}
	users := row.TargetUserIDs
	if t.ReviewerID != nil {
		users = append(append([]int64{}, users...), *t.ReviewerID)
	}
	for _, userID := range users {
		if dept, ok := userDepartments[userID]; ok {
			depts[dept] = struct{}{}
		}
	}
	row.DepartmentIDs = make([]int64, 0, len(depts))
	for dept := range depts {
		row.DepartmentIDs = append(row.DepartmentIDs, dept)
	}
	sort.Slice(row.DepartmentIDs, func(i, j int) bool { return row.DepartmentIDs[i] < row.DepartmentIDs[j] })
	return row
}

// RollupBucket aggregates stats rows sharing a department or assignee.
type RollupBucket struct {
	Key                   int64    `json:"key"`
	Tickets               int      `json:"tickets"`
	Resolved              int      `json:"resolved"`
	Rejected              int      `json:"rejected"`
	Canceled              int      `json:"canceled"`
	AvgTotalSeconds       *float64 `json:"avg_total_seconds"`
	AvgAcceptanceSeconds  *float64 `json:"avg_acceptance_seconds"`
	totalSum, acceptSum   int64
	totalCnt, acceptCount int
}

// StatsRollup groups rows per department and per assignee.
type StatsRollup struct {
	ByDepartment []RollupBucket `json:"by_department"`
	ByAssignee   []RollupBucket `json:"by_assignee"`
}

// Rollup aggregates rows. A ticket counts once toward every department and
// every user of its chain.
func Rollup(rows []StatsRow) StatsRollup {
	depts := map[int64]*RollupBucket{}
	assignees := map[int64]*RollupBucket{}
	for _, row := range rows {
		for _, dept := range row.DepartmentIDs {
			accumulate(bucketFor(depts, dept), row)
		}
		seen := map[int64]struct{}{}
		for _, user := range row.TargetUserIDs {
			if _, dup := seen[user]; dup {
				continue
			}
			seen[user] = struct{}{}
			accumulate(bucketFor(assignees, user), row)
		}
	}
	return StatsRollup{ByDepartment: finish(depts), ByAssignee: finish(assignees)}
}

func bucketFor(m map[int64]*RollupBucket, key int64) *RollupBucket {
	b, ok := m[key]
	if !ok {
		b = &RollupBucket{Key: key}
		m[key] = b
	}
	return b
}

func accumulate(b *RollupBucket, row StatsRow) {
	b.Tickets++
	if row.IsResolved {
		b.Resolved++
	}
	if row.IsRejected {
		b.Rejected++
	}
	if row.IsCanceled {
		b.Canceled++
	}
	if row.TotalTimeSeconds != nil {
		b.totalSum += *row.TotalTimeSeconds
		b.totalCnt++
	}
	if row.AcceptanceTimeSeconds != nil {
		b.acceptSum += *row.AcceptanceTimeSeconds
		b.acceptCount++
	}
}

func finish(m map[int64]*RollupBucket) []RollupBucket {
	out := make([]RollupBucket, 0, len(m))
	for _, b := range m {
		if b.totalCnt > 0 {
			avg := float64(b.totalSum) / float64(b.totalCnt)
			b.AvgTotalSeconds = &avg
		}
		if b.acceptCount > 0 {
			avg := float64(b.acceptSum) / float64(b.acceptCount)
			b.AvgAcceptanceSeconds = &avg
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
