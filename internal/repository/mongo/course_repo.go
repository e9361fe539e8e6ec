package mongo

import (
	"context"
	"errors"
	"time"

	"zeroplus/course-app/internal/domain"
	"zeroplus/course-app/internal/repository"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const courseCollectionName = "courses"

// maxUpdateAttempts bounds the read-compute-write retry loop before the
// conflict is surfaced to the caller.
const maxUpdateAttempts = 3

// mongoCourseRepository implements repository.CourseRepository
type mongoCourseRepository struct {
	collection *mongo.Collection
}

// NewMongoCourseRepository creates a new Course repository backed by MongoDB.
func NewMongoCourseRepository(db *mongo.Database) repository.CourseRepository {
	return &mongoCourseRepository{
		collection: db.Collection(courseCollectionName),
	}
}

// Create inserts a new course document.
func (r *mongoCourseRepository) Create(ctx context.Context, course *domain.Course) (primitive.ObjectID, error) {
	if course.Name == "" {
		return primitive.NilObjectID, errors.New("course requires a name")
	}

	course.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	course.Revision = 0
	if course.Students == nil {
		course.Students = []string{}
	}
	if course.Homework == nil {
		course.Homework = []domain.Assignment{}
	}

	result, err := r.collection.InsertOne(ctx, course)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted course ID")
	}
	return insertedID, nil
}

// GetByID retrieves a course by its ID.
func (r *mongoCourseRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Course, error) {
	var course domain.Course
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&course)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &course, nil
}

// List retrieves all courses, oldest first.
func (r *mongoCourseRepository) List(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &courses); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return courses, nil
}

// UpdateAssignments runs the optimistic read-compute-write cycle for
// homework-collection mutations. The write is conditional on the revision
// observed at read time; a missed write means another client committed in
// between, and the whole cycle restarts from a fresh read. Nothing is
// partially applied: either the conditional write lands or the caller gets
// an error.
func (r *mongoCourseRepository) UpdateAssignments(ctx context.Context, id primitive.ObjectID, mutate func(*domain.Course) error) (*domain.Course, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		course, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		readRevision := course.Revision

		if err := mutate(course); err != nil {
			return nil, err
		}

		filter := bson.M{"_id": id, "revision": readRevision}
		update := bson.M{
			"$set": bson.M{
				"homework":  course.Homework,
				"updatedAt": time.Now().UTC(),
			},
			"$inc": bson.M{"revision": 1},
		}

		result, err := r.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount > 0 {
			course.Revision = readRevision + 1
			return course, nil
		}
		// Revision moved under us; loop back to a fresh read.
	}
	return nil, repository.ErrTransactionConflict
}

// UpsertSubmission sets one entry of the assignment's submissions map via an
// array filter on the assignment ID. The write is keyed by student, so two
// students submitting at once touch different map keys and both land. The
// revision still bumps so that any in-flight UpdateAssignments cycle that
// read the pre-submission document misses its conditional write and rereads,
// instead of clobbering this submission with its stale homework array.
//
// The filter requires the assignment to still be present: an unmatched
// arrayFilter is a silent no-op in MongoDB, so matching on _id alone would
// report success for a submission against a concurrently deleted assignment.
func (r *mongoCourseRepository) UpsertSubmission(ctx context.Context, id primitive.ObjectID, assignmentID string, submission domain.Submission) error {
	filter := bson.M{"_id": id, "homework.id": assignmentID}
	update := bson.M{
		"$set": bson.M{
			"homework.$[hw].submissions." + submission.StudentID: submission,
			"updatedAt": time.Now().UTC(),
		},
		"$inc": bson.M{"revision": 1},
	}
	arrayFilters := options.ArrayFilters{
		Filters: []interface{}{bson.M{"hw.id": assignmentID}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetArrayFilters(arrayFilters))
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddStudent enrolls a student; $addToSet keeps the roster duplicate-free.
func (r *mongoCourseRepository) AddStudent(ctx context.Context, id primitive.ObjectID, studentID string) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$addToSet": bson.M{"students": studentID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemoveStudent removes a student from the course roster.
func (r *mongoCourseRepository) RemoveStudent(ctx context.Context, id primitive.ObjectID, studentID string) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$pull": bson.M{"students": studentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureCourseIndexes creates necessary indexes for the courses collection.
func EnsureCourseIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Roster membership checks for student-facing reads
			Keys:    bson.D{{Key: "students", Value: 1}},
			Options: options.Index(),
		},
		{
			// Assignment lookups inside the embedded homework array
			Keys:    bson.D{{Key: "homework.id", Value: 1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Warn().Err(err).Str("collection", collection.Name()).Msg("failed to create indexes")
	}
}
